package entity

import (
	"testing"
)

type status string

type sample struct {
	Name   string
	Count  int
	Note   *string
	Status status
}

func sampleBinding() *Binding {
	type E = sample
	return NewBinding[E]("Sample", "Name",
		Value("Name", func(e *E) *string { return &e.Name }),
		Value("Count", func(e *E) *int { return &e.Count }),
		Optional("Note", func(e *E) **string { return &e.Note }),
		Enum("Status", func(e *E) *status { return &e.Status }),
	)
}

func TestBindingGetSetByCaseInsensitiveName(t *testing.T) {
	binding := sampleBinding()
	record := binding.New()

	if err := binding.Set(record, "name", "alpha"); err != nil {
		t.Fatalf("Set(name) error = %v", err)
	}
	if err := binding.Set(record, "COUNT", 3); err != nil {
		t.Fatalf("Set(COUNT) error = %v", err)
	}
	if err := binding.Set(record, "Status", "Ready"); err != nil {
		t.Fatalf("Set(Status) error = %v", err)
	}

	got := record.(*sample)
	if got.Name != "alpha" || got.Count != 3 || got.Status != "Ready" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if value, ok := binding.Get(record, " status "); !ok || value != "Ready" {
		t.Fatalf("Get(status) = %v, %v", value, ok)
	}
	if binding.PrimaryKey(record) != "alpha" {
		t.Fatalf("PrimaryKey() = %v", binding.PrimaryKey(record))
	}
}

func TestBindingRejectsWrongTypesAndUnknownFields(t *testing.T) {
	binding := sampleBinding()
	record := binding.New()

	if err := binding.Set(record, "Count", "three"); err == nil {
		t.Fatal("expected type error")
	}
	if err := binding.Set(record, "Status", 1); err == nil {
		t.Fatal("expected enum type error")
	}
	if err := binding.Set(record, "Missing", 1); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, ok := binding.Get(record, "Missing"); ok {
		t.Fatal("Get(Missing) should report false")
	}
}

func TestOptionalFieldsRoundTripNil(t *testing.T) {
	binding := sampleBinding()
	record := binding.New()

	if value, _ := binding.Get(record, "Note"); value != nil {
		t.Fatalf("Note = %v, want nil", value)
	}
	if err := binding.Set(record, "Note", "hello"); err != nil {
		t.Fatalf("Set(Note) error = %v", err)
	}
	if value, _ := binding.Get(record, "Note"); value != "hello" {
		t.Fatalf("Note = %v", value)
	}
	if err := binding.Set(record, "Note", nil); err != nil {
		t.Fatalf("Set(Note, nil) error = %v", err)
	}
	if record.(*sample).Note != nil {
		t.Fatal("Note should be nil after setting nil")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	binding := sampleBinding()
	note := "original"
	record := &sample{Name: "alpha", Count: 1, Note: &note, Status: "Ready"}

	clone := binding.Clone(record).(*sample)
	*clone.Note = "changed"
	clone.Count = 9

	if *record.Note != "original" || record.Count != 1 {
		t.Fatalf("clone shares memory with source: %+v", record)
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(sampleBinding())
	if _, ok := registry.Binding("sample"); !ok {
		t.Fatal("Binding(sample) not found")
	}
	if _, ok := registry.Binding("other"); ok {
		t.Fatal("Binding(other) should not exist")
	}
	if names := registry.Entities(); len(names) != 1 || names[0] != "Sample" {
		t.Fatalf("Entities() = %v", names)
	}
	if fields := sampleBinding().FieldNames(); len(fields) != 4 || fields[0] != "Name" {
		t.Fatalf("FieldNames() = %v", fields)
	}
}
