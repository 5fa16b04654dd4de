package offline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persiste la cola como JSON en disco. Escritura atómica vía archivo
// temporal + rename, para no corromper la cola si el proceso muere a mitad.
type FileStore struct {
	path string
}

// NewFileStore construye el store sobre la ruta dada.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load lee la cola persistida. Archivo inexistente = cola vacía.
func (s *FileStore) Load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("leer %s: %w", s.path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decodificar cola: %w", err)
	}
	return entries, nil
}

// Save escribe la cola completa.
func (s *FileStore) Save(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("codificar cola: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("crear directorio: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("escribir %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("renombrar %s: %w", tmp, err)
	}
	return nil
}

// MemoryStore cola en memoria, para tests y clientes efímeros.
type MemoryStore struct {
	entries []Entry
}

// NewMemoryStore construye el store vacío.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load devuelve una copia de lo guardado.
func (s *MemoryStore) Load() ([]Entry, error) {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Save reemplaza el contenido.
func (s *MemoryStore) Save(entries []Entry) error {
	s.entries = make([]Entry, len(entries))
	copy(s.entries, entries)
	return nil
}
