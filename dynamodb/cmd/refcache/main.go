// refcache is a command line client for the reference cache.
//
// # Installation
//
//	go install github.com/acksell/refcache/dynamodb/cmd/refcache@latest
//
// # Commands
//
//	refcache insert KEY [ID [COLUMNS...]]   Cache a record through the insert function
//	refcache query KEY [ID [COLUMNS...]]    Fetch records through the query function
//	refcache remove PRIMARY SORT            Remove a record through the remove function
//	refcache whoami                         Show the AWS identity in use
//	refcache version
//
// With --local the commands read and write a BadgerDB store instead of
// invoking remote functions:
//
//	refcache --local --db ./data insert template tpl-1 --client c --source s --data '{"some": 123}'
//	refcache --local --db ./data query template tpl-1 --client c --source s --columns some
//
// Settings are read from refcache.yaml, see package config.
package main

import (
	"context"
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "refcache: %v\n", err)
		os.Exit(1)
	}
}
