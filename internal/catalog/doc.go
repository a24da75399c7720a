// Package catalog persists the translation catalog: projects, entries,
// pages, modules, and placements. It is the stable side of the system that
// capture sessions diff against, and the only writer is the apply step.
package catalog
