package history

import "testing"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndReplay(t *testing.T) {
	s := openTestStore(t)

	sess, err := s.BeginSession()
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID == "" {
		t.Fatal("session has no id")
	}

	lines := []struct {
		source string
		result string
		ok     bool
	}{
		{"x = 1", "", true},
		{"x + 1", "2", true},
		{"missing", "NameError: name 'missing' is not defined", false},
	}
	for i, l := range lines {
		if err := s.Record(sess.ID, i, l.source, l.result, l.ok); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := s.Entries(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(lines) {
		t.Fatalf("got %d entries, want %d", len(got), len(lines))
	}
	for i, e := range got {
		if e.Seq != i {
			t.Errorf("entry %d has seq %d", i, e.Seq)
		}
		if e.Source != lines[i].source || e.Result != lines[i].result || e.OK != lines[i].ok {
			t.Errorf("entry %d = %+v, want %+v", i, e, lines[i])
		}
	}
}

func TestEntriesScopedToSession(t *testing.T) {
	s := openTestStore(t)

	a, _ := s.BeginSession()
	b, _ := s.BeginSession()
	if err := s.Record(a.ID, 0, "1 + 1", "2", true); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(b.ID, 0, "2 + 2", "4", true); err != nil {
		t.Fatal(err)
	}

	got, err := s.Entries(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Source != "2 + 2" {
		t.Fatalf("session b entries = %+v", got)
	}
}

func TestSessionsLimit(t *testing.T) {
	s := openTestStore(t)

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		sess, err := s.BeginSession()
		if err != nil {
			t.Fatal(err)
		}
		seen[sess.ID] = true
	}

	got, err := s.Sessions(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sessions, want 2", len(got))
	}
	for _, sess := range got {
		if !seen[sess.ID] {
			t.Errorf("unknown session %s returned", sess.ID)
		}
	}
}

func TestDuplicateSeqRejected(t *testing.T) {
	s := openTestStore(t)

	sess, _ := s.BeginSession()
	if err := s.Record(sess.ID, 0, "a = 1", "", true); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(sess.ID, 0, "b = 2", "", true); err == nil {
		t.Fatal("duplicate (session, seq) accepted")
	}
}
