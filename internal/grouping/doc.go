/*
Package grouping partitions the visible replica into overlapping visual
clusters.

# Why Grouping Exists

Renderers draw a padded convex hull around every host, VM, namespace and
bridge, and around fabric nodes. Which node belongs in which hull is a
structural question answered from node metadata and parent links, and it
has nothing to do with drawing, so it lives here as a pure function over a
graph.Reader.

# Algorithm

Compute runs in two passes over the included nodes in ID order:

 1. Anchors. A fabric probe node joins the group named by its Group
    metadata, or "fabric". A host anchors its own group, typed "vm" when
    it carries an InstanceID. Namespaces, OVS bridges and Linux bridges
    anchor their own group.
 2. Ascent. Every node climbs through its best parent and joins each
    ancestor group it meets, stopping after the first host. A node can
    therefore sit in several nested groups.

The best parent skips fabric probes. An ovsport parent wins unless the
node has an IfIndex, in which case it is ignored; ovsbridge, netns and
bridge parents win next; otherwise the last generic parent in edge ID
order is used. A visited set ends the climb on cyclic parent chains.

Only visible, positioned nodes become members, since hull geometry comes
from member coordinates. Groups left without members are dropped.

Compute keeps no state between calls.
*/
package grouping
