// Package plan loads lists of commands from YAML, JSON or CUE files.
//
// A plan file has an optional name and a commands list. Each entry is a
// command line or a record:
//
//	name: bootstrap
//	commands:
//	  - rm /tmp/stale
//	  - name: unzip
//	    args: [-asset, base.zip, /data/www]
//	  - name: mv
//	    args: /data/www/index.tmp /data/www/index.html
//	    priority: 1
//
// Record args may be a list or a single space-delimited string.
package plan
