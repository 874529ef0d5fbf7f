/*
Package router implements inter-CSE request forwarding: when a request
primitive targets a CSE that is not provisioned locally, the processor hands
it here and the router delivers it to the next hop.

# Routing table

The table caches registration data so next-hop resolution never touches the
data store on the request path:

	CseBase   one per locally provisioned CSE: identity plus registrar
	RemoteCse one per remoteCSE resource: reachability and points of access

Records are verified before insertion; duplicates are warned about and
replaced. A remote of IN-CSE type becomes its base's registrar on insert.
The table is rebuilt from the store at startup, skipping malformed records
so one bad resource cannot block the daemon.

# Forwarding

Forwards run on a fixed worker pool; the caller blocks on a result channel
(or keeps the channel, via ForwardAsync). The algorithm per forward:

 1. Find the first remote registered with the target cseId, scanning bases
    in name order. No match is NOT_FOUND.
 2. A remote that is not request reachable fails immediately: NOT_IMPLEMENTED
    when it advertises a polling channel (unsupported), TARGET_NOT_REACHABLE
    otherwise.
 3. Try each point of access in order. The scheme picks the plugin (scheme-less
    entries default to http); unresolvable schemes are skipped. A transport
    error, TARGET_NOT_REACHABLE or ACCESS_DENIED moves on to the next entry;
    any other response wins.
 4. When the owning base is an MN-CSE, retry once through its registrar,
    unless the registrar is the remote that already failed.
 5. Otherwise the final answer is TARGET_NOT_REACHABLE.

A panic inside a forward is recovered into INTERNAL_SERVER_ERROR so one bad
plugin cannot take a worker down.

# Plugins

A plugin sends one request primitive to one endpoint. HTTP posts the
primitive as a JSON map and decodes the response body; CoAP does the same
over UDP with a JSON payload. A returned error means "endpoint unreachable";
protocol failures are response status codes.

# Usage

	svc := router.NewService(router.ServiceConfig{Store: store})
	svc.RegisterPlugin("http", router.NewHTTPPlugin())
	svc.RegisterPlugin("https", router.NewHTTPPlugin())
	svc.RegisterPlugin("coap", router.NewCoapPlugin())
	if err := svc.Rebuild(); err != nil {
		...
	}
	defer svc.Stop()
*/
package router
