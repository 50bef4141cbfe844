//go:build !nobadger

package app

import (
	"github.com/vk/statcore/modules/badgerdb"
)

// The badger backend pulls in the Badger store and its dependencies; builds
// that cannot afford them opt out with the nobadger tag.
func init() {
	coreModules = append(coreModules, &badgerdb.Module{})
}
