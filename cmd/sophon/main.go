package main

import (
	"github.com/darkforest-tools/sophon/cmd/sophon/commands"

	// Register state storage backends
	_ "github.com/PowerDNS/simpleblob/backends/fs"
	_ "github.com/PowerDNS/simpleblob/backends/memory"
	_ "github.com/PowerDNS/simpleblob/backends/s3"

	// Register delivery backends
	_ "github.com/darkforest-tools/sophon/delivery/kafka"
	_ "github.com/darkforest-tools/sophon/delivery/logsink"
	_ "github.com/darkforest-tools/sophon/delivery/memory"
	_ "github.com/darkforest-tools/sophon/delivery/webhook"
)

// version is overridden during the build with the go linker
var version = "dev"

func main() {
	commands.SetVersion(version)
	commands.Execute()
}
