package app

import (
	"github.com/vk/statcore/internal/registry"
	"github.com/vk/statcore/modules/bayes"
	"github.com/vk/statcore/modules/memcache"
	"github.com/vk/statcore/modules/mmapfile"
	"github.com/vk/statcore/modules/osb"
)

// coreModules is the definitive list of all modules that are compiled into
// the statcore binary. Optional modules append themselves from build-tagged
// files in this package.
var coreModules = []registry.Module{
	&bayes.Module{},
	&osb.Module{},
	&mmapfile.Module{},
	&memcache.Module{},
}
