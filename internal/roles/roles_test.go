package roles

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Role
		wantErr bool
	}{
		{name: "admin", input: "admin", want: Admin},
		{name: "media coordinator", input: "media_coordinator", want: MediaCoordinator},
		{name: "mixed case", input: "Teacher", want: Teacher},
		{name: "surrounding whitespace", input: " student ", want: Student},
		{name: "unknown", input: "janitor", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	for _, r := range All {
		if !r.Valid() {
			t.Errorf("Valid() = false for enumerated role %q", r)
		}
	}

	if Role("superuser").Valid() {
		t.Error("Valid() = true for role outside the enumeration")
	}
}

func TestNamedSetsStayInsideEnumeration(t *testing.T) {
	sets := map[string][]Role{
		"Staff":          Staff,
		"Administrative": Administrative,
		"Library":        Library,
	}

	for name, set := range sets {
		for _, r := range set {
			if !r.Valid() {
				t.Errorf("set %s contains unknown role %q", name, r)
			}
		}
	}
}

func TestContains(t *testing.T) {
	if !Contains(Staff, Librarian) {
		t.Error("Contains(Staff, Librarian) = false, want true")
	}
	if Contains(Administrative, Student) {
		t.Error("Contains(Administrative, Student) = true, want false")
	}
	if Contains(nil, Admin) {
		t.Error("Contains(nil, Admin) = true, want false")
	}
}

func TestJoin(t *testing.T) {
	got := Join([]Role{Admin, Coordinator})
	if got != "admin, coordinator" {
		t.Errorf("Join() = %q, want %q", got, "admin, coordinator")
	}
}
