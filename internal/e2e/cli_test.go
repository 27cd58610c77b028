package e2e

import (
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/davidahmann/chime/internal/testutil"
)

type cliPulse struct {
	Seq         uint64 `json:"seq"`
	PulseID     string `json:"pulse_id"`
	MonotonicNS int64  `json:"monotonic_ns"`
	ChainHash   string `json:"chain_hash"`
}

type cliDescriptor struct {
	DescriptorID    string  `json:"descriptor_id"`
	ComplianceScore float64 `json:"compliance_score"`
	PulseRange      struct {
		Count uint64 `json:"count"`
	} `json:"pulse_range"`
}

func runChime(t *testing.T, binPath, workDir string, args ...string) []byte {
	t.Helper()
	command := exec.Command(binPath, args...)
	command.Dir = workDir
	out, err := command.Output()
	if err != nil {
		var stderr string
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		t.Fatalf("chime %s failed: %v\n%s", strings.Join(args, " "), err, stderr)
	}
	return out
}

func TestCLILifecycle(t *testing.T) {
	root := testutil.RepoRoot(t)
	binPath := testutil.BuildChimeBinary(t, root)
	workDir := t.TempDir()

	var first, second cliPulse
	if err := json.Unmarshal(runChime(t, binPath, workDir, "pulse"), &first); err != nil {
		t.Fatalf("parse first pulse: %v", err)
	}
	if err := json.Unmarshal(runChime(t, binPath, workDir, "pulse"), &second); err != nil {
		t.Fatalf("parse second pulse: %v", err)
	}
	if first.PulseID == second.PulseID {
		t.Fatalf("pulses must carry distinct ids")
	}
	if second.Seq != first.Seq+1 {
		t.Fatalf("sequence must advance: %d then %d", first.Seq, second.Seq)
	}

	var history []cliPulse
	if err := json.Unmarshal(runChime(t, binPath, workDir, "history", "--limit", "10"), &history); err != nil {
		t.Fatalf("parse history: %v", err)
	}
	if len(history) != 2 || history[0].PulseID != first.PulseID {
		t.Fatalf("history must list both pulses in order, got %+v", history)
	}

	var created cliDescriptor
	createOut := runChime(t, binPath, workDir, "descriptor", "create",
		"--process", "release-review",
		"--version", "2.1.0",
		"--level", "4",
		"--outcome", "compliant",
		"--start", first.PulseID,
		"--end", second.PulseID,
		"--apriori", "vault://plans/release-review",
		"--aposteriori", "vault://results/run-42",
		"--require", "design-doc,test-report",
		"--provide", "design-doc",
		"--assessed-by", "auditor",
		"--method", "manual",
		"--constraint", "two-person-review",
	)
	if err := json.Unmarshal(createOut, &created); err != nil {
		t.Fatalf("parse descriptor: %v", err)
	}
	if math.Abs(created.ComplianceScore-0.72) > 1e-9 {
		t.Fatalf("expected score 0.72, got %f", created.ComplianceScore)
	}
	if created.PulseRange.Count != 2 {
		t.Fatalf("expected pulse range count 2, got %d", created.PulseRange.Count)
	}

	getOut := runChime(t, binPath, workDir, "descriptor", "get", created.DescriptorID)
	if !strings.Contains(string(getOut), created.DescriptorID) {
		t.Fatalf("get must return the descriptor: %s", getOut)
	}

	findOut := runChime(t, binPath, workDir, "descriptor", "find", "--pulse", first.PulseID)
	if !strings.Contains(string(findOut), created.DescriptorID) {
		t.Fatalf("find by pulse missed the descriptor: %s", findOut)
	}
	findOut = runChime(t, binPath, workDir, "descriptor", "find", "--ref", "vault://results/run-42")
	if !strings.Contains(string(findOut), created.DescriptorID) {
		t.Fatalf("find by ref missed the descriptor: %s", findOut)
	}

	auditOut := runChime(t, binPath, workDir, "audit", created.DescriptorID)
	for _, fragment := range []string{`"what"`, `"why"`, `"how"`, `"learned"`, `"vault_pointers"`, "vault://plans/release-review"} {
		if !strings.Contains(string(auditOut), fragment) {
			t.Fatalf("audit trail missing %s: %s", fragment, auditOut)
		}
	}

	verifyOut := runChime(t, binPath, workDir, "verify")
	if !strings.Contains(string(verifyOut), `"CLEAN"`) {
		t.Fatalf("expected clean chains: %s", verifyOut)
	}

	doctorOut := runChime(t, binPath, workDir, "doctor")
	if !strings.Contains(string(doctorOut), `"healthy": true`) {
		t.Fatalf("expected healthy report: %s", doctorOut)
	}

	reportOut := runChime(t, binPath, workDir, "descriptor", "report")
	if !strings.Contains(string(reportOut), `"release-review"`) {
		t.Fatalf("capability report missing process inventory: %s", reportOut)
	}

	rebuildOut := runChime(t, binPath, workDir, "index", "rebuild")
	if !strings.Contains(string(rebuildOut), `"rebuilt": true`) {
		t.Fatalf("unexpected rebuild output: %s", rebuildOut)
	}
}

func TestCLIVerifyDetectsTampering(t *testing.T) {
	root := testutil.RepoRoot(t)
	binPath := testutil.BuildChimeBinary(t, root)
	workDir := t.TempDir()

	runChime(t, binPath, workDir, "pulse")
	runChime(t, binPath, workDir, "pulse")

	logPath := filepath.Join(workDir, ".chime", "pulses.jsonl")
	content := testutil.MustReadFile(t, logPath)
	tampered := strings.Replace(string(content), `"source_node":"chime-local"`, `"source_node":"evil-node"`, 1)
	if tampered == string(content) {
		t.Fatalf("tamper target not found in %s", logPath)
	}
	testutil.WriteFile(t, logPath, []byte(tampered))

	command := exec.Command(binPath, "verify", "--chain", "pulse")
	command.Dir = workDir
	out, err := command.Output()
	if err == nil {
		t.Fatalf("tampered chain must fail verification: %s", out)
	}
	if testutil.CommandExitCode(t, err) != 1 {
		t.Fatalf("expected exit code 1")
	}
	if !strings.Contains(string(out), `"VIOLATED"`) || !strings.Contains(string(out), "content_hash_mismatch") {
		t.Fatalf("report must name the violation: %s", out)
	}

	doctor := exec.Command(binPath, "doctor")
	doctor.Dir = workDir
	doctorOut, doctorErr := doctor.Output()
	if doctorErr == nil {
		t.Fatalf("doctor must fail on a violated chain: %s", doctorOut)
	}
	if !strings.Contains(string(doctorOut), `"healthy": false`) {
		t.Fatalf("doctor must report unhealthy: %s", doctorOut)
	}
}

func TestCLIAuditResolvesVaultPointers(t *testing.T) {
	root := testutil.RepoRoot(t)
	binPath := testutil.BuildChimeBinary(t, root)
	workDir := t.TempDir()

	testutil.WriteFile(t, filepath.Join(workDir, "vault", "plans", "p"), []byte("plan body"))

	var pulseRecord cliPulse
	if err := json.Unmarshal(runChime(t, binPath, workDir, "pulse"), &pulseRecord); err != nil {
		t.Fatalf("parse pulse: %v", err)
	}
	var created cliDescriptor
	createOut := runChime(t, binPath, workDir, "descriptor", "create",
		"--process", "p", "--version", "1", "--level", "1", "--outcome", "indeterminate",
		"--start", pulseRecord.PulseID, "--end", pulseRecord.PulseID,
		"--apriori", "vault://plans/p", "--aposteriori", "vault://results/missing",
		"--assessed-by", "a", "--method", "m",
	)
	if err := json.Unmarshal(createOut, &created); err != nil {
		t.Fatalf("parse descriptor: %v", err)
	}

	auditOut := runChime(t, binPath, workDir, "audit", created.DescriptorID, "--resolve", "--vault-dir", "vault")
	if !strings.Contains(string(auditOut), "plan body") {
		t.Fatalf("resolved pointer content missing: %s", auditOut)
	}
	if !strings.Contains(string(auditOut), `"missing_pointers"`) ||
		!strings.Contains(string(auditOut), "vault://results/missing") {
		t.Fatalf("unresolvable pointer must be listed: %s", auditOut)
	}

	if err := os.Remove(filepath.Join(workDir, "vault", "plans", "p")); err != nil {
		t.Fatalf("remove vault file: %v", err)
	}
	auditOut = runChime(t, binPath, workDir, "audit", created.DescriptorID)
	if !strings.Contains(string(auditOut), "vault://plans/p") {
		t.Fatalf("pointers must survive vault content removal: %s", auditOut)
	}
}
