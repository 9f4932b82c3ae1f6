package cmd

import (
	"testing"

	rt "github.com/gearhulk/gearhulk/pkg/runtime"
	"github.com/gearhulk/gearhulk/worker"
)

// TestWorkerCommandBasic tests the basic worker command functionality
func TestWorkerCommandBasic(t *testing.T) {
	// This test verifies that the worker command can be created and configured
	// without actually running it (integration tests would require a running server)
	
	// Test creating job handler for EOF mode
	jobHandler := createJobHandler("echo test", true)
	if jobHandler == nil {
		t.Error("Failed to create job handler for EOF mode")
	}
	
	// Test creating job handler for persistent mode
	jobHandler2 := createJobHandler("echo test", false)
	if jobHandler2 == nil {
		t.Error("Failed to create job handler for persistent mode")
	}
}

// TestWorkerSubprocess tests subprocess creation and execution
func TestWorkerSubprocess(t *testing.T) {
	// Test EOF mode subprocess execution
	result, err := processJobWithNewSubprocess("echo hello", "test data")
	if err != nil {
		t.Errorf("EOF mode subprocess failed: %v", err)
	}
	
	// Result should contain "hello" since echo ignores stdin and just outputs its args
	if len(result) == 0 {
		t.Error("EOF mode subprocess returned empty result")
	}
}

// TestWorkerFlags tests command line flag parsing
func TestWorkerFlags(t *testing.T) {
	// Test that the worker command's flags populate workerCfg
	if err := workerCmd.Flags().Parse([]string{"--server", "localhost:4730", "--eof"}); err != nil {
		t.Fatalf("Failed to parse worker flags: %v", err)
	}

	if workerCfg.ServerAddr != "localhost:4730" {
		t.Error("Server address flag not set correctly")
	}
	
	if !workerCfg.EofMode {
		t.Error("EOF mode flag not set correctly")
	}
}

// ExampleWorker demonstrates the worker usage patterns
func ExampleWorker() {
	// Example of how to use the worker (this would be used in integration tests)
	// This shows the pattern that would be used with a real Gearman server
	
	// Create a worker
	w := worker.New(worker.Unlimited)
	defer w.Close()
	
	// Add server
	w.AddServer(rt.Network, "127.0.0.1:4730")
	
	// Create a simple job function
	jobFunc := func(job worker.Job) ([]byte, error) {
		// This would be replaced by the shell command execution
		return []byte("result"), nil
	}
	
	// Add function
	w.AddFunc("test", jobFunc, 0)
	
	// In a real scenario, you would call w.Ready() and w.Work()
	// But for testing, we just verify the setup works
}