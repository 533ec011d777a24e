package models

import (
	"encoding/json"
	"testing"
)

func TestStringSetToggle(t *testing.T) {
	s := StringSet{"a", "b"}

	added, ok := s.Toggle("c")
	if !ok || !added.Contains("c") || len(added) != 3 {
		t.Fatalf("Toggle(c) = %v, %v", added, ok)
	}

	removed, ok := added.Toggle("a")
	if ok || removed.Contains("a") {
		t.Fatalf("Toggle(a) = %v, %v", removed, ok)
	}
	if removed[0] != "b" || removed[1] != "c" {
		t.Errorf("order not preserved: %v", removed)
	}

	// toggling twice returns the original membership
	twice, _ := s.Toggle("x")
	twice, _ = twice.Toggle("x")
	if len(twice) != len(s) || twice[0] != "a" || twice[1] != "b" {
		t.Errorf("double toggle = %v, want %v", twice, s)
	}
	if len(s) != 2 {
		t.Errorf("Toggle mutated receiver: %v", s)
	}
}

func TestStringsValueScan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want []string
	}{
		{"nil", nil, []string{}},
		{"empty bytes", []byte{}, []string{}},
		{"json string", `["x","y"]`, []string{"x", "y"}},
		{"json bytes", []byte(`["z"]`), []string{"z"}},
		{"json null", "null", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s StringSet
			if err := s.Scan(tt.src); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if len(s) != len(tt.want) {
				t.Fatalf("Scan() = %v, want %v", s, tt.want)
			}
			for i := range s {
				if s[i] != tt.want[i] {
					t.Errorf("Scan()[%d] = %q, want %q", i, s[i], tt.want[i])
				}
			}
		})
	}

	var bad StringList
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}

	v, err := StringList(nil).Value()
	if err != nil || v != "[]" {
		t.Errorf("nil Value() = %v, %v", v, err)
	}
	v, _ = StringList{"a"}.Value()
	if v != `["a"]` {
		t.Errorf("Value() = %v", v)
	}
}

func TestStringsMarshalJSONNil(t *testing.T) {
	out, err := json.Marshal(struct {
		Likes StringSet  `json:"likes"`
		Tags  StringList `json:"tags"`
	}{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"likes":[],"tags":[]}` {
		t.Errorf("Marshal = %s", out)
	}
}

func TestCommentView(t *testing.T) {
	c := Comment{Content: "hello there", Likes: StringSet{"u1"}}
	if v := c.View(); v.Content != "hello there" || len(v.Likes) != 1 {
		t.Errorf("View() of live comment changed it: %+v", v)
	}

	c.IsDeleted = true
	v := c.View()
	if v.Content != DeletedCommentPlaceholder {
		t.Errorf("Content = %q", v.Content)
	}
	if len(v.Likes) != 0 {
		t.Errorf("Likes = %v, want empty", v.Likes)
	}
	if len(c.Likes) != 1 {
		t.Error("View() mutated stored likes")
	}
	if c.Interactive() {
		t.Error("deleted comment should not be interactive")
	}
}

func TestDefaults(t *testing.T) {
	p := &Profile{DisplayName: "Ada"}
	p.ID = "uid-1"
	u := UserFromProfile(p)
	if u.Role != RoleUser || u.Status != StatusActive {
		t.Errorf("defaults = %s/%s", u.Role, u.Status)
	}
	if u.IsAdmin() || !u.IsActive() {
		t.Error("default user should be active non-admin")
	}

	var nilUser *User
	if nilUser.IsAdmin() || nilUser.IsActive() {
		t.Error("nil user must not be admin or active")
	}

	for _, c := range Categories() {
		if !c.Valid() || c.Label() == string(c) {
			t.Errorf("category %q invalid or unlabeled", c)
		}
	}
	if Category("robots").Valid() {
		t.Error("unknown category accepted")
	}
}
