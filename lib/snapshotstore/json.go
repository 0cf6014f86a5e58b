package snapshotstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"infojobs-candidatures/lib/candidature"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("lib/snapshotstore")

// JSONFile stores the snapshot as an indented json array, the layout of the
// results.json files written by earlier versions of the tool.
type JSONFile struct {
	path string
}

func NewJSONFile(path string) JSONFile {
	return JSONFile{path: path}
}

func (s JSONFile) Path() string {
	return s.path
}

func (s JSONFile) Load(ctx context.Context) ([]candidature.Candidature, bool, error) {
	_, span := tracer.Start(ctx, "JSONFile.Load")
	defer span.End()

	buff, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	snapshot, err := DecodeJSON(buff)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", s.path, err)
	}
	span.SetAttributes(attribute.Int("candidatures", len(snapshot)))
	return snapshot, true, nil
}

// DecodeJSON parses a results file and re-derives every status.
func DecodeJSON(buff []byte) ([]candidature.Candidature, error) {
	var snapshot []candidature.Candidature
	err := json.Unmarshal(buff, &snapshot)
	if err != nil {
		return nil, err
	}
	return candidature.Rederive(snapshot)
}

// EncodeJSON renders a snapshot the way it is stored on disk.
func EncodeJSON(snapshot []candidature.Candidature) ([]byte, error) {
	if snapshot == nil {
		snapshot = []candidature.Candidature{}
	}
	var buff bytes.Buffer
	encoder := json.NewEncoder(&buff)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	err := encoder.Encode(snapshot)
	if err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

func (s JSONFile) lock(ctx context.Context) (*flock.Flock, error) {
	lock := flock.New(s.path + ".lock")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if errors.Is(err, context.DeadlineExceeded) || (err == nil && !locked) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Save replaces the snapshot atomically, readers either see the previous
// file or the new one.
func (s JSONFile) Save(ctx context.Context, snapshot []candidature.Candidature) error {
	ctx, span := tracer.Start(ctx, "JSONFile.Save")
	defer span.End()

	buff, err := EncodeJSON(snapshot)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return err
	}

	lock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(buff)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s JSONFile) SavedAt(ctx context.Context) (time.Time, bool, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return info.ModTime(), true, nil
}
