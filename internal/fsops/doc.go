// Package fsops provides the built-in filesystem commands: rm, mv and unzip.
package fsops
