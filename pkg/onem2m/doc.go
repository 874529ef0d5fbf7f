/*
Package onem2m defines the protocol vocabulary shared by every layer of the
gateway: operations, resource types and their short names, response status
codes, result-content options, content formats, and the handful of URI and
timestamp helpers the processors lean on.

Values are kept as the exact wire strings from TS0004 section 8.2.2 (short
names) and 6.3.4 (enumerations) so primitives can be populated and compared
without conversion at the transport boundary.

# Usage

	if op := onem2m.Operation(req.Attr(primitives.Operation)); op == onem2m.OperationCreate {
		...
	}

	key := onem2m.ResourceTypeContainer.WireKey() // "m2m:cnt"
*/
package onem2m
