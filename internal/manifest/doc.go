// Package manifest turns applet HTML files into the JSON manifests the
// desktop shell loads.
package manifest
