/*
Package resource implements per-type content handling for the oneM2M resource
types the gateway serves: AE, Container, ContentInstance, Subscription,
CSE base, RemoteCSE and AccessControlPolicy.

Each type has an attribute table (allowed single-valued, allowed multi-valued,
mandatory-on-create). ParseContent unwraps the "m2m:<type>" payload object,
validates every supplied attribute against the table, applies the type's
computed attributes (content size, counter initialization, notification
content type default, CSE-assigned AE-ID), and reduces the result to the flat
attrs/attrSets form the tree stores. Violations come back as a ContentError
carrying the response status code, usually CONTENTS_UNACCEPTABLE.

ProduceJSON is the inverse at the response boundary: stored string attributes
rendered with their wire types (counters as numbers, reachability as a
boolean, privilege blocks re-embedded as objects).

The acp helpers parse the stored privileges block into typed rules for the
access-control processor.
*/
package resource
