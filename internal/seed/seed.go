// Package seed replays sample forum content through the forum service so
// every row goes through the same validation and journal as live traffic.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"

	"github.com/garnizeh/qaforum/internal/forum"
)

// SampleForumFile is the seed file shipped in db.SeedFiles.
const SampleForumFile = "seed/sample_forum.json"

type File struct {
	Questions []Question `json:"questions"`
}

type Question struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Author  string   `json:"author"`
	Answers []Answer `json:"answers"`
}

type Answer struct {
	Content  string  `json:"content"`
	Author   string  `json:"author"`
	Resolves bool    `json:"resolves"`
	Replies  []Reply `json:"replies"`
}

type Reply struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// Counts reports how many rows a load created.
type Counts struct {
	Questions int `json:"questions"`
	Answers   int `json:"answers"`
	Replies   int `json:"replies"`
	Resolved  int `json:"resolved"`
}

// Parse decodes a seed document.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, nil
}

// LoadFS reads name from fsys and replays it into svc.
func LoadFS(ctx context.Context, svc *forum.Service, fsys fs.FS, name string) (Counts, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return Counts{}, fmt.Errorf("open seed %s: %w", name, err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return Counts{}, err
	}
	return Load(ctx, svc, doc)
}

// Load asks, answers, replies and resolves as the recorded authors. It stops
// at the first rejected entry.
func Load(ctx context.Context, svc *forum.Service, doc File) (Counts, error) {
	var c Counts
	for i, sq := range doc.Questions {
		q, err := svc.Ask(ctx, sq.Title, sq.Body, sq.Author)
		if err != nil {
			return c, fmt.Errorf("question %d: %w", i, err)
		}
		c.Questions++

		resolving := ""
		for j, sa := range sq.Answers {
			a, err := svc.Answer(ctx, q.ID, sa.Content, sa.Author)
			if err != nil {
				return c, fmt.Errorf("question %d answer %d: %w", i, j, err)
			}
			c.Answers++
			for k, sr := range sa.Replies {
				if _, err := svc.Reply(ctx, a.ID, sr.Content, sr.Author); err != nil {
					return c, fmt.Errorf("question %d answer %d reply %d: %w", i, j, k, err)
				}
				c.Replies++
			}
			if sa.Resolves {
				resolving = a.ID
			}
		}

		if resolving != "" {
			if _, err := svc.Resolve(ctx, q.ID, resolving, sq.Author); err != nil {
				return c, fmt.Errorf("question %d resolve: %w", i, err)
			}
			c.Resolved++
		}
	}
	return c, nil
}
