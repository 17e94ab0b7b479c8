/*
Package snapshot implements the per-object delta snapshot tracker.

Every networked object owns one State. The State keeps the last serialized
value of every replicated field (a Slot), a 64-bit content hash of that value,
and per slot the set of connections that have received the current value.

The replication loop writes every slot once per tick with AddSerialized or
AddCached. Writes of an identical value are free: the hash matches and nothing
is modified. A changed value invalidates all acknowledgements for that slot,
and the set of connections that were up to date on the whole object.

The replication loop then asks for the Pending entries per connection, sends
them, and marks them with Acknowledge and AcknowledgeAll once they have been
delivered.

## Parent salting

Some values are only meaningful relative to a parent object, like a local
transform. When such a value is written with saltWithParent, the 16 bytes of
the parent ID are appended to the hash input, so the value is sent again after
the object is re-parented, even when its bytes did not change.

If no parent is set, salted writes are hashed unsalted. This can be detected
with Entry.Salted and the deltasnap_snapshot_unsalted_writes_total metric.
*/
package snapshot
