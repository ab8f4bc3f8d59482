// Package skipgraph implements the lookup-table construction and the search
// algorithms of a skip graph.
//
// A skip graph orders a population of nodes by numeric id (NumID) and links
// them in levels. At level 0 every node is linked to its numeric predecessor
// and successor. At level k, a node is linked to the nearest nodes, in numeric
// order, whose name id (a bit string) shares at least k leading bits with its
// own. Each node keeps its links in a LookupTable of L+1 levels.
//
// The Engine owns a population and rebuilds every table whenever the
// population changes. Searches walk the tables: SearchByNumID moves from an
// entry node toward the target, dropping levels when the next hop would
// overshoot; SearchByNameID climbs from one prefix group to the next, always
// landing on the lowest numeric id among the nodes with the longest prefix.
//
// The population is written through to a Store. InmemStore keeps nothing
// beyond the process; BadgerStore persists identities so that an engine can be
// bootstrapped from an existing database.
package skipgraph
