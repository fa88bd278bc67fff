package rsyncd

import (
	"bufio"
	"sort"

	"github.com/synctree/rsyncd/pkg/protocol"
)

// listModuleNames selects the modules a client requesting a listing
// (empty module name, or the conventional "#list") should see, sorted
// by name for a stable listing.
func listModuleNames(config Config) []ModuleConfig {
	modules := make([]ModuleConfig, len(config.Modules))
	copy(modules, config.Modules)
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return modules
}

// WriteModuleListing emits the module listing a daemon sends when a
// client selects no module (or "#list"): tab-separated name/comment
// lines, one per module, followed by the daemon exit line. Per spec.md
// 8's daemon listing sequence.
func WriteModuleListing(w *bufio.Writer, config Config) error {
	for _, module := range listModuleNames(config) {
		if err := protocol.WriteLine(w, module.Name+"\t"+module.Comment); err != nil {
			return err
		}
	}
	return protocol.WriteLine(w, protocol.DaemonExitLine)
}
