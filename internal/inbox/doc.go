// Package inbox turns files dropped into a spool directory into queued
// commands. Each *.cmd file holds one command line per line.
package inbox
