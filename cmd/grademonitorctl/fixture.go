package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/grademonitor-api/internal/dto"
	"github.com/noah-isme/grademonitor-api/internal/models"
)

// fixture describes one student in one course plus an optional edit script.
type fixture struct {
	Scope      models.MonitorScope `yaml:"scope"`
	Dataset    models.Dataset      `yaml:"dataset"`
	FlushDelay time.Duration       `yaml:"flushDelay"`
	Edits      []edit              `yaml:"edits"`
}

// edit is applied After the previous one on the virtual clock.
type edit struct {
	After   time.Duration      `yaml:"after"`
	Command dto.CommandRequest `yaml:"command"`
}

func loadFixture(path string) (*fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.Scope.UserID == 0 {
		f.Scope.UserID = 1
	}
	if f.Scope.CourseID == 0 {
		f.Scope.CourseID = 1
	}
	return &f, nil
}

// staticDatasets serves the fixture dataset to the monitor service.
type staticDatasets struct {
	dataset models.Dataset
}

func (s staticDatasets) Load(ctx context.Context, scope models.MonitorScope) (models.Dataset, error) {
	return s.dataset, ctx.Err()
}
