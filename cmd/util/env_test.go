package util

import (
	"os"
	"testing"
)

func TestGetEnvWithDefault(t *testing.T) {
	// Test with existing env var
	os.Setenv("TEST_STRING", "test-value")
	if GetEnvWithDefault("TEST_STRING", "default") != "test-value" {
		t.Errorf("Expected GetEnvWithDefault to return 'test-value', got '%s'", GetEnvWithDefault("TEST_STRING", "default"))
	}

	// Test with missing env var
	os.Unsetenv("MISSING_VAR")
	if GetEnvWithDefault("MISSING_VAR", "default") != "default" {
		t.Errorf("Expected GetEnvWithDefault to return 'default', got '%s'", GetEnvWithDefault("MISSING_VAR", "default"))
	}

	// Test with empty env var (should return default)
	os.Setenv("EMPTY_VAR", "")
	if GetEnvWithDefault("EMPTY_VAR", "default") != "default" {
		t.Errorf("Expected GetEnvWithDefault to return 'default' for empty var, got '%s'", GetEnvWithDefault("EMPTY_VAR", "default"))
	}

	// Cleanup
	os.Unsetenv("TEST_STRING")
	os.Unsetenv("EMPTY_VAR")
}

func TestGetEnvIntWithDefault(t *testing.T) {
	// Test with valid int env var
	os.Setenv("TEST_INT", "12345")
	if GetEnvIntWithDefault("TEST_INT", 0) != 12345 {
		t.Errorf("Expected GetEnvIntWithDefault to return 12345, got %d", GetEnvIntWithDefault("TEST_INT", 0))
	}

	// Test with invalid int value (should return default)
	os.Setenv("TEST_INVALID_INT", "not-a-number")
	if GetEnvIntWithDefault("TEST_INVALID_INT", 999) != 999 {
		t.Errorf("Expected GetEnvIntWithDefault to return default 999, got %d", GetEnvIntWithDefault("TEST_INVALID_INT", 999))
	}

	// Test with missing env var
	os.Unsetenv("MISSING_INT_VAR")
	if GetEnvIntWithDefault("MISSING_INT_VAR", 777) != 777 {
		t.Errorf("Expected GetEnvIntWithDefault to return default 777, got %d", GetEnvIntWithDefault("MISSING_INT_VAR", 777))
	}

	// Test with empty env var (should return default)
	os.Setenv("EMPTY_INT_VAR", "")
	if GetEnvIntWithDefault("EMPTY_INT_VAR", 888) != 888 {
		t.Errorf("Expected GetEnvIntWithDefault to return default 888 for empty var, got %d", GetEnvIntWithDefault("EMPTY_INT_VAR", 888))
	}

	// Cleanup
	os.Unsetenv("TEST_INT")
	os.Unsetenv("TEST_INVALID_INT")
	os.Unsetenv("EMPTY_INT_VAR")
}

func TestParsePackageRoots_FlagValues(t *testing.T) {
	roots, err := ParsePackageRoots([]string{"lib=/pkgs/lib", "analog=/pkgs/analog"})
	if err != nil {
		t.Fatalf("ParsePackageRoots: %v", err)
	}
	if roots["lib"] != "/pkgs/lib" || roots["analog"] != "/pkgs/analog" {
		t.Errorf("unexpected roots: %+v", roots)
	}
}

func TestParsePackageRoots_InvalidEntry(t *testing.T) {
	if _, err := ParsePackageRoots([]string{"no-equals-sign"}); err == nil {
		t.Errorf("expected an error for a flag value missing '='")
	}
}

func TestParsePackageRoots_EnvFallbackDoesNotOverrideFlag(t *testing.T) {
	os.Setenv("PCB_PACKAGE_ROOT_LIB", "/env/lib")
	defer os.Unsetenv("PCB_PACKAGE_ROOT_LIB")

	roots, err := ParsePackageRoots([]string{"lib=/flag/lib"})
	if err != nil {
		t.Fatalf("ParsePackageRoots: %v", err)
	}
	if roots["lib"] != "/flag/lib" {
		t.Errorf("expected flag value to take precedence, got %q", roots["lib"])
	}
}

func TestParsePackageRoots_EnvFallbackFillsMissing(t *testing.T) {
	os.Setenv("PCB_PACKAGE_ROOT_ANALOG", "/env/analog")
	defer os.Unsetenv("PCB_PACKAGE_ROOT_ANALOG")

	roots, err := ParsePackageRoots(nil)
	if err != nil {
		t.Fatalf("ParsePackageRoots: %v", err)
	}
	if roots["analog"] != "/env/analog" {
		t.Errorf("expected env fallback to populate 'analog', got %+v", roots)
	}
}
