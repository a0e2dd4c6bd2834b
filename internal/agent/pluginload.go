package agent

import (
	"fmt"
	"plugin"

	"github.com/geekxflood/gosnmpd/internal/mib"
)

// loadProducer opens a compiled Go plugin (-buildmode=plugin) and
// resolves its exported "Produce" symbol, the language-specific
// realisation of add_plugin_dir's "file body wrapped into a producer"
// contract. The symbol must have the exact mib.Producer signature.
func loadProducer(path string) (mib.Producer, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := p.Lookup("Produce")
	if err != nil {
		return nil, err
	}
	producer, ok := sym.(func(string) (any, error))
	if !ok {
		return nil, fmt.Errorf("agent: %s: Produce has the wrong signature", path)
	}
	return producer, nil
}
