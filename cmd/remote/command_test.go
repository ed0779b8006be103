package remote

import "testing"

func TestAddArgs(t *testing.T) {
	if err := AddCmd.Args(AddCmd, []string{"hub", "../hub"}); err != nil {
		t.Fatalf("two args: %v", err)
	}
	if err := AddCmd.Args(AddCmd, []string{"hub"}); err == nil {
		t.Fatal("one arg accepted, want usage error")
	}
	if err := AddCmd.Args(AddCmd, nil); err == nil {
		t.Fatal("zero args accepted, want usage error")
	}
}

func TestRemoveArgs(t *testing.T) {
	if err := RemoveCmd.Args(RemoveCmd, []string{"hub"}); err != nil {
		t.Fatalf("one arg: %v", err)
	}
	if err := RemoveCmd.Args(RemoveCmd, []string{"hub", "extra"}); err == nil {
		t.Fatal("two args accepted, want usage error")
	}
}

func TestRemoveAliases(t *testing.T) {
	for _, alias := range RemoveCmd.Aliases {
		if alias == "rm" {
			return
		}
	}
	t.Fatal("remove has no rm alias")
}

func TestSetURLArgs(t *testing.T) {
	if err := SetURLCmd.Args(SetURLCmd, []string{"hub", "ssh://host/store"}); err != nil {
		t.Fatalf("two args: %v", err)
	}
	if err := SetURLCmd.Args(SetURLCmd, []string{"hub"}); err == nil {
		t.Fatal("one arg accepted, want usage error")
	}
}
