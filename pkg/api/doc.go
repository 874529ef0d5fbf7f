/*
Package api is the HTTP reference binding of the request-primitive interface.

One HTTP exchange is one primitive:

	GET    /cse1/AE1          RETRIEVE
	POST   /cse1  (ty=2)      CREATE, resource type from Content-Type ;ty=
	PUT    /cse1/AE1          UPDATE
	DELETE /cse1/AE1          DELETE

The originator rides in X-M2M-Origin and the request identifier in X-M2M-RI
(one is generated when the client omits it, so curl works out of the box).
Query parameters bind onto primitive attributes: rcn, drt, fu, lim and the
filter criteria, with lbl and rty repeatable. The response carries the
oneM2M status code in X-M2M-RSC, a mapped HTTP status, and the formatted
result content as the body.

The server also mounts /health (liveness), /ready (store reachable and at
least one CSE provisioned) and /metrics (Prometheus).
*/
package api
