// Package lockfile implements the atomic read-modify-write transactor over
// skills.lock.json: the serialization format, the sort/uniqueness
// invariants, and the single Edit entry point every mutating verb goes
// through.
package lockfile

import (
	"sort"
	"time"

	"github.com/skillyard/skillyard/internal/skillerr"
	"github.com/skillyard/skillyard/internal/store"
)

// Source identifies where an installed skill's files came from.
type Source struct {
	URL       string `json:"url"`
	Host      string `json:"host"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	SkillPath string `json:"skillPath"`
}

// Skill is one installed skill's lock entry.
type Skill struct {
	InstallName string    `json:"installName"`
	Source      Source    `json:"source"`
	Ref         string    `json:"ref,omitempty"`
	Commit      string    `json:"commit"`
	Digest      string    `json:"digest"`
	InstalledAt time.Time `json:"installedAt"`
}

// Lockfile is the full contents of skills.lock.json.
type Lockfile struct {
	Version     int       `json:"version"`
	Skills      []Skill   `json:"skills"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// CurrentVersion is the lockfile schema version this package writes.
const CurrentVersion = 1

// Store is a handle on a project's lockfile.
type Store struct {
	backing *store.JSONStore[Lockfile]
}

// Open returns a Store for the lockfile at path. The file is not read or
// created until Load or Edit is called.
func Open(path string) *Store {
	return &Store{backing: store.NewJSONStore[Lockfile](path, true, true)}
}

// Load reads the lockfile, returning an empty (version 1, no skills) value
// if the file does not exist yet.
func (s *Store) Load() (Lockfile, error) {
	lf, err := s.backing.Load()
	if err != nil {
		return Lockfile{}, err
	}
	if lf.Version == 0 {
		lf.Version = CurrentVersion
	}
	return lf, nil
}

// EditFunc mutates lf in place and returns an application-defined result.
// Returning an error aborts the edit: the file is left untouched.
type EditFunc[V any] func(lf *Lockfile) (V, error)

// Edit is the only supported mutation path for the lockfile. It loads the
// current contents (or synthesizes an empty lockfile if absent), invokes fn,
// and on success re-sorts Skills by InstallName, stamps GeneratedAt, and
// writes the result atomically. On error from fn, the file is left exactly
// as it was.
func Edit[V any](s *Store, fn EditFunc[V]) (V, error) {
	var zero V
	lf, err := s.Load()
	if err != nil {
		return zero, err
	}

	result, err := fn(&lf)
	if err != nil {
		return zero, err
	}

	sort.Slice(lf.Skills, func(i, j int) bool { return lf.Skills[i].InstallName < lf.Skills[j].InstallName })
	lf.Version = CurrentVersion
	lf.GeneratedAt = time.Now().UTC()

	if err := s.backing.Save(lf); err != nil {
		return zero, err
	}
	return result, nil
}

// Find returns a pointer to the entry named installName within lf.Skills,
// or nil if there is none. The pointer aliases lf.Skills' backing array and
// is only valid until the slice is next mutated.
func Find(lf *Lockfile, installName string) *Skill {
	for i := range lf.Skills {
		if lf.Skills[i].InstallName == installName {
			return &lf.Skills[i]
		}
	}
	return nil
}

// Upsert replaces the entry named skill.InstallName if present, or appends
// skill otherwise.
func Upsert(lf *Lockfile, skill Skill) {
	for i := range lf.Skills {
		if lf.Skills[i].InstallName == skill.InstallName {
			lf.Skills[i] = skill
			return
		}
	}
	lf.Skills = append(lf.Skills, skill)
}

// Remove deletes the entry named installName, reporting whether one was
// found and removed.
func Remove(lf *Lockfile, installName string) bool {
	for i := range lf.Skills {
		if lf.Skills[i].InstallName == installName {
			lf.Skills = append(lf.Skills[:i], lf.Skills[i+1:]...)
			return true
		}
	}
	return false
}

// DuplicateNames returns every install_name that appears more than once,
// a defect doctor reports since install_name is the lockfile's primary key.
func DuplicateNames(lf *Lockfile) []string {
	seen := map[string]int{}
	for _, sk := range lf.Skills {
		seen[sk.InstallName]++
	}
	var dups []string
	for name, count := range seen {
		if count > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	return dups
}

// RequireUnique returns an AlreadyExistsError if installName is already
// present in lf.
func RequireUnique(lf *Lockfile, installName string) error {
	if Find(lf, installName) != nil {
		return &skillerr.AlreadyExistsError{What: "install_name", Name: installName}
	}
	return nil
}
