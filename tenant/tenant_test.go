package tenant

import "testing"

func TestResolve(t *testing.T) {
	tables, err := Resolve("unidade_bh_01")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if tables.ChatHistory != "unidade_bh_01:chat_history" {
		t.Errorf("Expected chat history prefix 'unidade_bh_01:chat_history', got '%s'", tables.ChatHistory)
	}
	if tables.CRMStatus != "unidade_bh_01:crm_status" {
		t.Errorf("Expected CRM status prefix 'unidade_bh_01:crm_status', got '%s'", tables.CRMStatus)
	}
	if tables.PauseList != "unidade_bh_01:pause" {
		t.Errorf("Expected pause prefix 'unidade_bh_01:pause', got '%s'", tables.PauseList)
	}
}

func TestResolve_InvalidIDs(t *testing.T) {
	testCases := []struct {
		name     string
		tenantID string
	}{
		{"Empty", ""},
		{"Uppercase", "Unidade"},
		{"Spaces", "unidade 01"},
		{"Injection", "x:*"},
		{"Hyphen", "unidade-01"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Resolve(tc.tenantID); err == nil {
				t.Errorf("Expected error for tenant id %q, got none", tc.tenantID)
			}
			if Valid(tc.tenantID) {
				t.Errorf("Valid(%q) = true, want false", tc.tenantID)
			}
		})
	}
}
