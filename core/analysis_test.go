package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/ckscan/core/ckparse"
	"github.com/huangsam/ckscan/core/invoke"
	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// cboTable has three classes with CBO values 1, 2 and 9.
const cboTable = "file,class,type,loc,wmc,rfc,noc,cbo,dit,lcom\n" +
	"A.java,A,class,10,1,1,0,1,1,0\n" +
	"B.java,B,class,20,1,1,0,2,2,4\n" +
	"C.java,C,class,30,1,1,0,9,3,8\n"

type analyzerFixture struct {
	analyzer *RepoAnalyzer
	git      *contract.MockGitClient
	runner   *contract.MockProcessRunner
	reposDir string
}

func newAnalyzerFixture(t *testing.T) *analyzerFixture {
	t.Helper()
	root := t.TempDir()
	jar := filepath.Join(root, "ck.jar")
	require.NoError(t, os.WriteFile(jar, []byte("jar"), 0o644))

	cfg := &contract.Config{
		JavaBin:         "java",
		AnalyzerJar:     jar,
		AnalyzerTimeout: time.Minute,
		ReposDir:        filepath.Join(root, "repos"),
		OutputDir:       filepath.Join(root, "out"),
	}
	git := new(contract.MockGitClient)
	runner := new(contract.MockProcessRunner)
	return &analyzerFixture{
		analyzer: NewRepoAnalyzer(cfg, git, runner),
		git:      git,
		runner:   runner,
		reposDir: cfg.ReposDir,
	}
}

// cloneSucceeds makes the mocked clone create a checkout with one file.
func (f *analyzerFixture) cloneSucceeds() {
	f.git.On("ShallowClone", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			dest := args.String(2)
			if err := os.MkdirAll(dest, 0o755); err != nil {
				panic(err)
			}
			if err := os.WriteFile(filepath.Join(dest, "Main.java"), []byte("class Main {}"), 0o644); err != nil {
				panic(err)
			}
		}).Return(nil)
	f.git.On("GetRepoHash", mock.Anything, mock.Anything).Return("abc123", nil)
}

// analyzerWrites makes the mocked process emit the class table at its prefix.
func (f *analyzerFixture) analyzerWrites(table string) {
	f.runner.On("RunProcess", mock.Anything, time.Minute, "java", mock.Anything).
		Run(func(args mock.Arguments) {
			argv := args.Get(3).([]string)
			prefix := argv[len(argv)-1]
			if err := os.WriteFile(prefix+invoke.ClassTableName, []byte(table), 0o644); err != nil {
				panic(err)
			}
		}).
		Return(schema.ProcessInvocationResult{State: schema.InvocationCompleted})
}

func (f *analyzerFixture) assertNoClones(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.reposDir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "clone directory should be removed")
}

func testRepo() schema.RepositoryDescriptor {
	return schema.RepositoryDescriptor{
		FullName: "acme/widgets",
		Stars:    42,
		CloneURL: "https://github.com/acme/widgets.git",
	}
}

func TestRepoAnalyzer_EndToEnd(t *testing.T) {
	f := newAnalyzerFixture(t)
	f.cloneSucceeds()
	f.analyzerWrites(cboTable)

	outcome := f.analyzer.Analyze(context.Background(), testRepo())

	require.True(t, outcome.Succeeded(), "reason: %s", outcome.Reason)
	assert.Equal(t, schema.StageDone, outcome.Stage)
	assert.Empty(t, outcome.Reason)
	assert.Equal(t, "abc123", outcome.CommitSHA)
	assert.InDelta(t, 4.0, outcome.Summary.CBOMean, 1e-9)
	assert.InDelta(t, 2.0, outcome.Summary.CBOMedian, 1e-9)
	assert.Equal(t, 3, outcome.Summary.ClassesCount)
	assert.Equal(t, int64(60), outcome.Summary.LOC)
	assert.Positive(t, outcome.Duration)
	f.assertNoClones(t)

	f.git.AssertCalled(t, "ShallowClone", mock.Anything, "https://github.com/acme/widgets.git",
		filepath.Join(f.reposDir, "acme_widgets"))
}

func TestRepoAnalyzer_CloneFailure(t *testing.T) {
	f := newAnalyzerFixture(t)
	f.git.On("ShallowClone", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("repository not found"))

	outcome := f.analyzer.Analyze(context.Background(), testRepo())

	assert.False(t, outcome.Succeeded())
	assert.Equal(t, schema.StageAcquiring, outcome.Stage)
	assert.Contains(t, outcome.Reason, "repository not found")
	f.runner.AssertNotCalled(t, "RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertNoClones(t)
}

func TestRepoAnalyzer_MissingCloneURL(t *testing.T) {
	f := newAnalyzerFixture(t)
	repo := testRepo()
	repo.CloneURL = ""

	outcome := f.analyzer.Analyze(context.Background(), repo)

	assert.Equal(t, schema.StageAcquiring, outcome.Stage)
	assert.Contains(t, outcome.Reason, "no clone url")
	f.git.AssertNotCalled(t, "ShallowClone", mock.Anything, mock.Anything, mock.Anything)
}

func TestRepoAnalyzer_Cancelled(t *testing.T) {
	f := newAnalyzerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := f.analyzer.Analyze(ctx, testRepo())

	assert.Equal(t, schema.StageAcquiring, outcome.Stage)
	assert.Contains(t, outcome.Reason, "cancelled")
}

func TestRepoAnalyzer_InvokeFailures(t *testing.T) {
	tests := []struct {
		name   string
		result schema.ProcessInvocationResult
		reason string
	}{
		{
			name:   "timeout",
			result: schema.ProcessInvocationResult{State: schema.InvocationTimedOut},
			reason: invoke.ErrTimeout.Error(),
		},
		{
			name:   "non-zero exit",
			result: schema.ProcessInvocationResult{State: schema.InvocationCompleted, ExitCode: 1, Output: "boom"},
			reason: invoke.ErrNonZeroExit.Error(),
		},
		{
			name:   "launch failure",
			result: schema.ProcessInvocationResult{State: schema.InvocationLaunchFailed, ExitCode: -1},
			reason: invoke.ErrLaunch.Error(),
		},
		{
			name:   "no output",
			result: schema.ProcessInvocationResult{State: schema.InvocationCompleted},
			reason: invoke.ErrMissingOutput.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalyzerFixture(t)
			f.cloneSucceeds()
			f.runner.On("RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tt.result)

			outcome := f.analyzer.Analyze(context.Background(), testRepo())

			assert.False(t, outcome.Succeeded())
			assert.Nil(t, outcome.Summary)
			assert.Equal(t, schema.StageInvoking, outcome.Stage)
			assert.Contains(t, outcome.Reason, tt.reason)
			f.assertNoClones(t)
		})
	}
}

func TestRepoAnalyzer_ParseFailure(t *testing.T) {
	f := newAnalyzerFixture(t)
	f.cloneSucceeds()
	f.analyzerWrites("file,class,type,loc,wmc,rfc,noc,cbo,dit,lcom\n")

	outcome := f.analyzer.Analyze(context.Background(), testRepo())

	assert.Equal(t, schema.StageParsing, outcome.Stage)
	assert.Contains(t, outcome.Reason, ckparse.ErrNoDataRows.Error())
	f.assertNoClones(t)
}

func TestRepoAnalyzer_PanicRecovered(t *testing.T) {
	f := newAnalyzerFixture(t)
	f.cloneSucceeds()
	f.analyzerWrites(cboTable)
	f.analyzer.Parse = func(string) (schema.MetricSummary, error) {
		panic("parser exploded")
	}

	var outcome schema.AnalysisOutcome
	require.NotPanics(t, func() {
		outcome = f.analyzer.Analyze(context.Background(), testRepo())
	})

	assert.False(t, outcome.Succeeded())
	assert.Equal(t, schema.StageParsing, outcome.Stage)
	assert.Contains(t, outcome.Reason, "parser exploded")
	f.assertNoClones(t)
}

func TestRepoAnalyzer_HashFailureIsNotFatal(t *testing.T) {
	f := newAnalyzerFixture(t)
	f.git.On("ShallowClone", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			if err := os.MkdirAll(args.String(2), 0o755); err != nil {
				panic(err)
			}
		}).Return(nil)
	f.git.On("GetRepoHash", mock.Anything, mock.Anything).Return("", errors.New("no HEAD"))
	f.analyzerWrites(cboTable)

	outcome := f.analyzer.Analyze(context.Background(), testRepo())

	assert.True(t, outcome.Succeeded())
	assert.Empty(t, outcome.CommitSHA)
}
