package repository

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fleet-tracking/internal/models"
)

// DirectoryFile is the YAML layout for a static directory.
type DirectoryFile struct {
	Workers  []models.Worker  `yaml:"workers"`
	Routes   []models.Route   `yaml:"routes"`
	Vehicles []models.Vehicle `yaml:"vehicles"`
}

// StaticDirectory serves directory lookups from a fixed set of records.
// It backs the memory store, where there is no database to read from.
type StaticDirectory struct {
	workers  map[string]models.Worker
	tokens   map[string]string
	routes   map[string]models.Route
	vehicles map[string]models.Vehicle
}

func NewStaticDirectory(f DirectoryFile) *StaticDirectory {
	d := &StaticDirectory{
		workers:  make(map[string]models.Worker, len(f.Workers)),
		tokens:   make(map[string]string, len(f.Workers)),
		routes:   make(map[string]models.Route, len(f.Routes)),
		vehicles: make(map[string]models.Vehicle, len(f.Vehicles)),
	}
	for _, w := range f.Workers {
		d.workers[w.ID] = w
		if w.APIToken != "" {
			d.tokens[w.APIToken] = w.ID
		}
	}
	for _, r := range f.Routes {
		d.routes[r.ID] = r
	}
	for _, v := range f.Vehicles {
		d.vehicles[v.ID] = v
	}
	return d
}

// LoadDirectoryFile reads a YAML directory file.
func LoadDirectoryFile(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}

	var f DirectoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse directory file: %w", err)
	}

	return NewStaticDirectory(f), nil
}

func (d *StaticDirectory) Worker(_ context.Context, id string) (models.Worker, error) {
	w, ok := d.workers[id]
	if !ok {
		return models.Worker{}, ErrNotFound
	}
	return w, nil
}

func (d *StaticDirectory) WorkerByToken(ctx context.Context, token string) (models.Worker, error) {
	id, ok := d.tokens[token]
	if !ok || token == "" {
		return models.Worker{}, ErrNotFound
	}
	return d.Worker(ctx, id)
}

func (d *StaticDirectory) Route(_ context.Context, id string) (models.Route, error) {
	r, ok := d.routes[id]
	if !ok {
		return models.Route{}, ErrNotFound
	}
	return r, nil
}

func (d *StaticDirectory) Vehicle(_ context.Context, id string) (models.Vehicle, error) {
	v, ok := d.vehicles[id]
	if !ok {
		return models.Vehicle{}, ErrNotFound
	}
	return v, nil
}
