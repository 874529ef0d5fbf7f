/*
Package rest implements the oneM2M request-processing state machine: the
protocol-independent core every transport adapter calls into.

A request primitive runs through validation (the protocol parameter table,
fail-fast, first violation wins), then the operation handler:

	Validating → Dispatched{Create,Retrieve,Update,Delete,Notify}
	           → ContentValidated → ResourceTreeApplied
	           → ResultFormatted → Done

Every terminal state produces a response primitive with a status code set and
the request identifier echoed. Protocol failures are response codes, never Go
errors; store failures surface as INTERNAL_SERVER_ERROR.

Mutating operations serialize through the per-resource lock manager. The
PARENT is locked for structural mutations — creating a child, deleting a
subtree — so a create racing a delete of the same parent cannot corrupt the
child list.

The package also hosts the three collaborating processors:

  - ResultContent formats the response body per the rcn option: attributes,
    hierarchical address, child refs, full child trees, or discovery arrays.
  - AccessControl evaluates acpi-referenced policies (originator lists plus
    operation bitmasks); no acpi means implicit allow.
  - Notifications finds the subscriptions in scope of a change, builds the
    nev/om/rep payload and publishes it on the event broker for the notifier
    service. Delete state is captured before the subtree is removed.

Targets whose first path segment is not a locally provisioned CSE are handed
to the router service for forwarding instead of touching the local tree.

# Usage

	processor := rest.NewProcessor(rest.Config{
		Store:  store,
		Locker: lock.NewLocker(),
		Broker: broker,
		Router: routerService,
	})

	resp := processor.HandleRequest(req)
	switch onem2m.StatusCode(resp.RSC()) {
	case onem2m.StatusCreated:
		...
	}
*/
package rest
