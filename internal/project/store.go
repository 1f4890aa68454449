// Package project is the in-memory Project/Scene/Asset graph. It owns
// Project and Scene records, enforces the derived-field invariants
// (total_cost, actual_duration, dense scene ordering), and is the only
// writer generated Assets are attached through by the job queue's
// completion hooks.
package project

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/h2adev/reelforge/internal/apierr"
	"github.com/h2adev/reelforge/internal/models"
)

// Store is a mutex-guarded, in-process map of Projects. There is no
// persistence beyond this process's lifetime.
type Store struct {
	mu        sync.Mutex
	projects  map[uuid.UUID]*models.Project
	currentID *uuid.UUID
}

// New constructs an empty store.
func New() *Store {
	return &Store{projects: make(map[uuid.UUID]*models.Project)}
}

// CreateInput is the caller-supplied subset of a new Project's fields.
type CreateInput struct {
	Title           string
	Platform        string
	AspectRatio     string
	TargetDurationS *float64
	Script          string
}

// Create inserts a new Project in draft status and returns it.
func (s *Store) Create(in CreateInput) *models.Project {
	now := time.Now()
	p := &models.Project{
		ID:                uuid.New(),
		Title:             in.Title,
		Platform:          in.Platform,
		AspectRatio:       in.AspectRatio,
		TargetDurationS:   in.TargetDurationS,
		Script:            in.Script,
		Status:            models.ProjectStatusDraft,
		Scenes:            []*models.Scene{},
		GlobalAudioTracks: []*models.Asset{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	if s.currentID == nil {
		id := p.ID
		s.currentID = &id
	}
	return p
}

// Get returns the project by id, or a resource_not_found error.
func (s *Store) Get(id uuid.UUID) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, apierr.NotFound("project", id.String())
	}
	return p, nil
}

// Current returns the single "current" project, if any has been marked so
// (the first created project becomes current by default).
func (s *Store) Current() (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentID == nil {
		return nil, apierr.NotFound("project", "current")
	}
	p, ok := s.projects[*s.currentID]
	if !ok {
		return nil, apierr.NotFound("project", "current")
	}
	return p, nil
}

// SetCurrent marks a project as the single "current" one.
func (s *Store) SetCurrent(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return apierr.NotFound("project", id.String())
	}
	s.currentID = &id
	return nil
}

// List returns every project, newest first.
func (s *Store) List() []*models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Update applies a mutation function to a project under the store's lock,
// then recomputes total_cost/actual_duration and bumps updated_at. The
// caller is solely responsible for Status — the store never derives it.
func (s *Store) Update(id uuid.UUID, mutate func(p *models.Project)) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, apierr.NotFound("project", id.String())
	}
	mutate(p)
	recompute(p)
	p.UpdatedAt = time.Now()
	return p, nil
}

// AddScene appends (or inserts) a scene. position, if non-nil, must be in
// [0, len(scenes)]; nil appends at the end. Orders are reassigned densely
// after insertion so [0, len) holds with no gaps or duplicates.
func (s *Store) AddScene(projectID uuid.UUID, scene *models.Scene, position *int) (*models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, apierr.NotFound("project", projectID.String())
	}

	idx := len(p.Scenes)
	if position != nil {
		if *position < 0 || *position > len(p.Scenes) {
			return nil, apierr.Validation(
				"position out of range",
				nil,
				"position must be between 0 and the current scene count, inclusive",
				`{"position": 0}`,
			)
		}
		idx = *position
	}

	if scene.ID == uuid.Nil {
		scene.ID = uuid.New()
	}
	if scene.Assets == nil {
		scene.Assets = []*models.Asset{}
	}

	p.Scenes = append(p.Scenes, nil)
	copy(p.Scenes[idx+1:], p.Scenes[idx:])
	p.Scenes[idx] = scene

	for i, sc := range p.Scenes {
		sc.Order = i
	}

	recompute(p)
	p.UpdatedAt = time.Now()
	return scene, nil
}

// AttachAsset appends a generated Asset to a scene (or, if sceneID is nil,
// to the project's global audio tracks), then recomputes derived fields.
// This is the single path the job queue's completion hooks use to mutate
// the graph.
func (s *Store) AttachAsset(projectID uuid.UUID, sceneID *uuid.UUID, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return apierr.NotFound("project", projectID.String())
	}

	if sceneID == nil {
		p.GlobalAudioTracks = append(p.GlobalAudioTracks, asset)
		recompute(p)
		p.UpdatedAt = time.Now()
		return nil
	}

	for _, sc := range p.Scenes {
		if sc.ID == *sceneID {
			sc.Assets = append(sc.Assets, asset)
			if asset.Kind == models.AssetKindVideo {
				sc.DurationS = asset.Metadata.Float("duration_s", sc.DurationS)
			}
			recompute(p)
			p.UpdatedAt = time.Now()
			return nil
		}
	}
	return apierr.NotFound("scene", sceneID.String())
}

// ClearAll removes every project. Intended for test/dev reset endpoints.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make(map[uuid.UUID]*models.Project)
	s.currentID = nil
}

// recompute restores total_cost = sum of all asset costs and
// actual_duration = sum of scene durations. Must be called with the
// store's lock already held.
func recompute(p *models.Project) {
	total := 0.0
	for _, sc := range p.Scenes {
		for _, a := range sc.Assets {
			total += a.Cost
		}
	}
	for _, a := range p.GlobalAudioTracks {
		total += a.Cost
	}
	p.TotalCost = round3(total)

	duration := 0.0
	for _, sc := range p.Scenes {
		duration += sc.DurationS
	}
	p.ActualDurationS = duration
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
