package routes

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the layout of the routes YAML file.
//
//	servers:
//	  sandbox:
//	    ip: 10.0.0.5
//	    public_ip: 203.0.113.7
//	    port: 27015
//	    password: secret
//	    relay_channel: "1234567890"
//	    webhook: https://discord.com/api/webhooks/...
type File struct {
	Servers map[string]Route `yaml:"servers"`
}

// Load reads the routes file and builds the table.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	return Parse(data)
}

// Parse decodes routes YAML and builds the table.
func Parse(data []byte) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}

	list := make([]Route, 0, len(f.Servers))
	for name, r := range f.Servers {
		r.Name = name
		list = append(list, r)
	}

	return NewTable(list)
}
