package snapshot

import (
	"encoding"

	"codeshare/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBFile struct {
	Content  string `msgpack:"content"`
	Language string `msgpack:"language"`
}

type DBSnapshot struct {
	ID         string            `msgpack:"id"`
	Files      map[string]DBFile `msgpack:"files"`
	ActiveFile string            `msgpack:"activeFile"`
	LastSaved  int64             `msgpack:"lastSaved"`
	UserCount  int               `msgpack:"userCount"`
}

var _ Storeable = (*DBSnapshot)(nil)

func (s *DBSnapshot) Key() []byte {
	return []byte(s.ID)
}

func (s *DBSnapshot) MarshalBinary() (data []byte, err error) {
	type alias DBSnapshot
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSnapshot) UnmarshalBinary(data []byte) error {
	type alias DBSnapshot
	return msgpack.Unmarshal(data, (*alias)(s))
}

func toDB(snap models.Snapshot) *DBSnapshot {
	files := make(map[string]DBFile, len(snap.Files))
	for name, f := range snap.Files {
		files[name] = DBFile{Content: f.Content, Language: f.Language}
	}
	return &DBSnapshot{
		ID:         snap.ID,
		Files:      files,
		ActiveFile: snap.ActiveFile,
		LastSaved:  snap.LastSaved,
		UserCount:  snap.UserCount,
	}
}

func (s *DBSnapshot) model() *models.Snapshot {
	files := make(map[string]models.File, len(s.Files))
	for name, f := range s.Files {
		files[name] = models.File{Name: name, Content: f.Content, Language: f.Language}
	}
	return &models.Snapshot{
		ID:         s.ID,
		Files:      files,
		ActiveFile: s.ActiveFile,
		LastSaved:  s.LastSaved,
		UserCount:  s.UserCount,
	}
}
