// Package mapper flattens hierarchical checkpoint parameter names into the
// flat key namespace of an archive.
//
// The mapping is data, not code: a Policy lists stages, each with a table of
// (source path pattern, key template) rules. Repeated stages are expanded
// over a caller-supplied BoundTable of (group, blocks) pairs, substituting
// {group} and {block} into both sides of every rule. Optional substructures
// are declared as Branches and detected by probing the input tree for a
// single path; when the probe path exists every rule of the branch becomes
// required.
//
// Map is a pure function of (tree, policy, bounds). Output order is stage
// order, then ascending group, then ascending block, then rule order. Missing
// required paths and key collisions abort the export with a *MappingError.
package mapper
