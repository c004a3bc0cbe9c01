package main

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"pool-registry-importer/abi_instance"
)

// set with -ldflags "-X main.Version=..."
var (
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
	Version   = "unknown"
)

type Info struct {
	GitCommit string
	GitBranch string
	BuildTime string
	Version   string
	GoVersion string

	// RegistryMethods is the registry interface this binary was built against.
	RegistryMethods []string
	// Registry and EthRPC are empty unless a config was loaded.
	Registry        string
	EthRPC          string
}

func GetVersion() Info {
	methods := make([]string, 0, len(abi_instance.RegistryABI.Methods))
	for name := range abi_instance.RegistryABI.Methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)

	return Info{
		GitCommit:       GitCommit,
		GitBranch:       GitBranch,
		BuildTime:       BuildTime,
		Version:         Version,
		GoVersion:       runtime.Version(),
		RegistryMethods: methods,
	}
}

func (i Info) String() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "pool-registry-importer %s\nGit Branch: %s\nGit Commit: %s\nBuild Time: %s\nGo Version: %s\nRegistry ABI: %s",
		i.Version,
		i.GitBranch,
		i.GitCommit,
		i.BuildTime,
		i.GoVersion,
		strings.Join(i.RegistryMethods, ", "),
	)
	if i.Registry != "" {
		fmt.Fprintf(b, "\nRegistry: %s\nRPC: %s", i.Registry, i.EthRPC)
	}
	return b.String()
}
