/*
Package primitives implements the oneM2M request, response and notification
primitives: ordered name/value attribute sets that make the engine independent
of any one wire transport.

A transport adapter parses its wire format, binds each protocol field to the
matching short-name attribute (op, to, fr, rqi, ty, nm, pc, ...) and hands the
Request to the rest processor. The processor answers with a Response whose
"rsc" status code is always set and whose "rqi" echoes the request identifier,
error paths included.

Many-valued attributes (labels, filter resource types, notification URIs) are
kept separately from single-valued ones, mirroring the attr / attrSet split in
the resource tree.

# Usage

	req := primitives.NewRequest()
	req.SetAttr(primitives.Operation, string(onem2m.OperationRetrieve))
	req.SetAttr(primitives.To, "/cse1/AE1")
	req.SetAttr(primitives.From, "/dev/client1")
	req.SetAttr(primitives.RequestIdentifier, uuid.NewString())

	resp := processor.HandleRequest(req)
	if resp.RSC() != string(onem2m.StatusOK) {
		// inspect resp.Attr(primitives.Content) for the diagnostic
	}
*/
package primitives
