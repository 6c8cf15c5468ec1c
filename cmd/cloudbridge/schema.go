package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/cloudbridge/bridge"
)

// schemaFile describes entities and relationships in YAML:
//
//	entities:
//	  - name: post
//	    rest_base_url: /posts
//	    relationships:
//	      - name: comments
//	        destination: comment
//	        to_many: true
//	        inverse: post
//	        delete_rule: cascade
type schemaFile struct {
	Entities []schemaEntity `yaml:"entities"`
}

type schemaEntity struct {
	Name          string               `yaml:"name"`
	RestBaseURL   string               `yaml:"rest_base_url"`
	Identifier    string               `yaml:"identifier"`
	Table         string               `yaml:"table"`
	Relationships []schemaRelationship `yaml:"relationships"`
}

type schemaRelationship struct {
	Name        string `yaml:"name"`
	Destination string `yaml:"destination"`
	ToMany      bool   `yaml:"to_many"`
	Inverse     string `yaml:"inverse"`
	KeyPath     string `yaml:"key_path"`
	RestBaseURL string `yaml:"rest_base_url"`
	DeleteRule  string `yaml:"delete_rule"`
}

// loadSchema reads a schema file into a registry.
func loadSchema(path string) (*bridge.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}

	registry := bridge.NewRegistry()
	for _, e := range file.Entities {
		if e.Name == "" {
			return nil, fmt.Errorf("schema %s: entity without a name", path)
		}
		entity := bridge.EntityDescription{
			Name:        e.Name,
			RestBaseURL: e.RestBaseURL,
			Identifier:  e.Identifier,
			TableName:   e.Table,
		}
		for _, r := range e.Relationships {
			rule, err := parseDeleteRule(r.DeleteRule)
			if err != nil {
				return nil, fmt.Errorf("schema %s: %s.%s: %w", path, e.Name, r.Name, err)
			}
			entity.Relationships = append(entity.Relationships, bridge.RelationshipDescription{
				Name:        r.Name,
				Destination: r.Destination,
				ToMany:      r.ToMany,
				Inverse:     r.Inverse,
				KeyPath:     r.KeyPath,
				RestBaseURL: r.RestBaseURL,
				DeleteRule:  rule,
			})
		}
		registry.Register(entity)
	}
	return registry, nil
}

func parseDeleteRule(s string) (bridge.DeleteRule, error) {
	switch strings.ToLower(s) {
	case "", "nullify":
		return bridge.Nullify, nil
	case "cascade":
		return bridge.Cascade, nil
	case "deny":
		return bridge.Deny, nil
	default:
		return bridge.Nullify, fmt.Errorf("unknown delete rule %q", s)
	}
}
