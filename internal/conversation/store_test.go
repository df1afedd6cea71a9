package conversation

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"sophia/internal/domain"
)

func TestNewStore_ShouldSeedSystemEntryAtOrdinalZero(t *testing.T) {
	s := NewStore()
	history := s.History()
	if len(history) != 1 {
		t.Fatalf("Expected 1 seeded entry, got %d", len(history))
	}
	if history[0].Ordinal != 0 || history[0].Role != domain.RoleSystem {
		t.Errorf("Seed entry = %+v", history[0])
	}
	if !strings.Contains(history[0].Content, "List Networks") {
		t.Errorf("System context missing identifier discovery guidance: %q", history[0].Content)
	}
	if !strings.Contains(history[0].Content, "suggestions") {
		t.Errorf("System context missing error suggestion guidance")
	}
}

func TestStore_Append_ShouldReturnMonotonicOrdinals(t *testing.T) {
	s := NewStore()
	first := s.Append(domain.RoleUser, "list my networks")
	second := s.Append(domain.RoleAgent, "you have 3 networks")
	if first != 1 || second != 2 {
		t.Errorf("Ordinals = %d, %d; want 1, 2", first, second)
	}
}

func TestStore_History_ShouldKeepSystemEntryFirstRegardlessOfTurns(t *testing.T) {
	s := NewStore()
	for i := 0; i < 50; i++ {
		s.Append(domain.RoleUser, "question")
		s.Append(domain.RoleAgent, "answer")
	}
	history := s.History()
	if history[0].Role != domain.RoleSystem || history[0].Ordinal != 0 {
		t.Fatalf("System entry displaced: %+v", history[0])
	}
	for i, e := range history {
		if e.Ordinal != i {
			t.Errorf("Entry %d has ordinal %d; order disturbed", i, e.Ordinal)
		}
	}
}

func TestStore_History_ShouldReturnStableSnapshot(t *testing.T) {
	s := NewStore()
	s.Append(domain.RoleUser, "hello")
	snapshot := s.History()
	s.Append(domain.RoleAgent, "hi")
	if len(snapshot) != 2 {
		t.Errorf("Snapshot grew after later append: %d entries", len(snapshot))
	}
	snapshot[0].Content = "mutated"
	if s.History()[0].Content == "mutated" {
		t.Error("Snapshot mutation leaked into the store")
	}
}

func TestStore_Append_ShouldBeSafeForConcurrentTurns(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(domain.RoleUser, "turn")
			_ = s.History()
		}()
	}
	wg.Wait()
	if s.Len() != 21 {
		t.Errorf("Len = %d, want 21", s.Len())
	}
}

func TestNewPersistentStore_ShouldPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	s, err := NewPersistentStore(path)
	if err != nil {
		t.Fatalf("NewPersistentStore: %v", err)
	}
	s.Append(domain.RoleUser, "¿cuántas redes tengo?")
	s.Append(domain.RoleAgent, "Tienes 3 redes.")
	if err := s.Err(); err != nil {
		t.Fatalf("persistence error: %v", err)
	}

	reloaded, err := NewPersistentStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	history := reloaded.History()
	if len(history) != 3 {
		t.Fatalf("Expected seed + 2 reloaded turns, got %d", len(history))
	}
	if history[0].Role != domain.RoleSystem {
		t.Errorf("Reloaded history must still start with the System seed")
	}
	if history[1].Content != "¿cuántas redes tengo?" || history[2].Role != domain.RoleAgent {
		t.Errorf("Turns lost on reload: %+v", history[1:])
	}
}

func TestNewPersistentStore_ShouldRejectCorruptHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPersistentStore(path); err == nil {
		t.Error("Expected error for corrupt history file")
	}
}
