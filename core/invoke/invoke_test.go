package invoke

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const classCSV = "file,class,type,loc,wmc,rfc,noc,cbo,dit,lcom\nA.java,A,class,10,1,1,0,1,1,0\n"

// fixture prepares a checkout, a fake jar and an output directory.
func fixture(t *testing.T) (repo, jar, out string) {
	t.Helper()
	root := t.TempDir()
	repo = filepath.Join(root, "repo")
	out = filepath.Join(root, "out")
	jar = filepath.Join(root, "ck.jar")
	require.NoError(t, os.MkdirAll(repo, 0o755))
	require.NoError(t, os.WriteFile(jar, []byte("jar"), 0o644))
	return repo, jar, out
}

func newInvoker(runner contract.ProcessRunner, jar string) *Invoker {
	return &Invoker{Runner: runner, JavaBin: "java", JarPath: jar, Timeout: time.Minute}
}

// writesTables makes the mocked analyzer emit the given tables at its output prefix.
func writesTables(tables map[string]string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		argv := args.Get(3).([]string)
		prefix := argv[len(argv)-1]
		for name, content := range tables {
			if err := os.WriteFile(prefix+name, []byte(content), 0o644); err != nil {
				panic(err)
			}
		}
	}
}

func TestInvoker_Args(t *testing.T) {
	inv := &Invoker{JarPath: "ck.jar", Concurrency: 4}
	assert.Equal(t,
		[]string{"-jar", "ck.jar", "/repos/a_b", "true", "4", "false", "/out/a_b"},
		inv.Args("/repos/a_b", "/out/a_b"))
}

func TestInvoker_Success(t *testing.T) {
	repo, jar, out := fixture(t)
	runner := new(contract.MockProcessRunner)
	runner.On("RunProcess", mock.Anything, time.Minute, "java", mock.Anything).
		Run(writesTables(map[string]string{ClassTableName: classCSV, MethodTableName: "m\n"})).
		Return(schema.ProcessInvocationResult{State: schema.InvocationCompleted})

	res, err := newInvoker(runner, jar).Invoke(context.Background(), repo, out, "octo/demo")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "octo_demo", ClassTableName), res.ClassTable)
	assert.Equal(t, filepath.Join(out, "octo_demo", MethodTableName), res.MethodTable)
	assert.FileExists(t, res.ClassTable)
	assert.NoFileExists(t, filepath.Join(out, "octo_demo"+ClassTableName))
	runner.AssertExpectations(t)
}

func TestInvoker_Idempotent(t *testing.T) {
	repo, jar, out := fixture(t)
	runner := new(contract.MockProcessRunner)
	runner.On("RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writesTables(map[string]string{ClassTableName: classCSV, MethodTableName: "first\n"})).
		Return(schema.ProcessInvocationResult{State: schema.InvocationCompleted}).Once()
	runner.On("RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writesTables(map[string]string{ClassTableName: classCSV + "B.java,B,class,5,1,1,0,2,1,0\n"})).
		Return(schema.ProcessInvocationResult{State: schema.InvocationCompleted}).Once()

	inv := newInvoker(runner, jar)
	first, err := inv.Invoke(context.Background(), repo, out, "octo/demo")
	require.NoError(t, err)
	second, err := inv.Invoke(context.Background(), repo, out, "octo/demo")
	require.NoError(t, err)

	assert.Equal(t, first.ClassTable, second.ClassTable)
	content, err := os.ReadFile(second.ClassTable)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(content), "\n"), "second run replaces the first table")
	assert.Empty(t, second.MethodTable, "stale method table from the first run is removed")
	assert.NoFileExists(t, filepath.Join(out, "octo_demo", MethodTableName))
}

func TestInvoker_Failures(t *testing.T) {
	tests := []struct {
		name    string
		result  schema.ProcessInvocationResult
		tables  map[string]string
		wantErr error
	}{
		{
			name:    "launch failed",
			result:  schema.ProcessInvocationResult{State: schema.InvocationLaunchFailed, ExitCode: -1, Output: "exec: java not found"},
			wantErr: ErrLaunch,
		},
		{
			name:    "timed out",
			result:  schema.ProcessInvocationResult{State: schema.InvocationTimedOut, ExitCode: -1},
			wantErr: ErrTimeout,
		},
		{
			name:    "non-zero exit",
			result:  schema.ProcessInvocationResult{State: schema.InvocationCompleted, ExitCode: 1, Output: "Exception in thread main"},
			tables:  map[string]string{ClassTableName: classCSV},
			wantErr: ErrNonZeroExit,
		},
		{
			name:    "missing output",
			result:  schema.ProcessInvocationResult{State: schema.InvocationCompleted},
			tables:  map[string]string{MethodTableName: "m\n"},
			wantErr: ErrMissingOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, jar, out := fixture(t)
			runner := new(contract.MockProcessRunner)
			runner.On("RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Run(writesTables(tt.tables)).
				Return(tt.result)

			res, err := newInvoker(runner, jar).Invoke(context.Background(), repo, out, "a/b")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.result, res.Process)
			assert.Empty(t, res.ClassTable)
		})
	}
}

func TestInvoker_CancelledBatchIsInterrupted(t *testing.T) {
	repo, jar, out := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	runner := new(contract.MockProcessRunner)
	runner.On("RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(schema.ProcessInvocationResult{State: schema.InvocationTimedOut, ExitCode: -1})

	res, err := newInvoker(runner, jar).Invoke(ctx, repo, out, "a/b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "interrupted")
	assert.NotContains(t, err.Error(), "timed out")
	assert.Equal(t, schema.InvocationTimedOut, res.Process.State)
}

func TestInvoker_NonZeroExitKeepsOutput(t *testing.T) {
	repo, jar, out := fixture(t)
	runner := new(contract.MockProcessRunner)
	runner.On("RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(schema.ProcessInvocationResult{State: schema.InvocationCompleted, ExitCode: 2, Output: "java.lang.OutOfMemoryError"})

	_, err := newInvoker(runner, jar).Invoke(context.Background(), repo, out, "a/b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit code 2")
	assert.Contains(t, err.Error(), "OutOfMemoryError")
}

func TestInvoker_Preconditions(t *testing.T) {
	repo, jar, out := fixture(t)
	runner := new(contract.MockProcessRunner)

	_, err := newInvoker(runner, jar).Invoke(context.Background(), filepath.Join(repo, "missing"), out, "a/b")
	assert.ErrorIs(t, err, ErrPrecondition)

	_, err = newInvoker(runner, filepath.Join(filepath.Dir(jar), "nope.jar")).Invoke(context.Background(), repo, out, "a/b")
	assert.ErrorIs(t, err, ErrPrecondition)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = newInvoker(runner, jar).Invoke(context.Background(), file, out, "a/b")
	assert.ErrorIs(t, err, ErrPrecondition)

	runner.AssertNotCalled(t, "RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoker_DirectoryStyleOutput(t *testing.T) {
	repo, jar, out := fixture(t)
	runner := new(contract.MockProcessRunner)
	runner.On("RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			argv := args.Get(3).([]string)
			prefix := argv[len(argv)-1]
			if err := os.WriteFile(filepath.Join(prefix, ClassTableName), []byte(classCSV), 0o644); err != nil {
				panic(err)
			}
		}).
		Return(schema.ProcessInvocationResult{State: schema.InvocationCompleted})

	res, err := newInvoker(runner, jar).Invoke(context.Background(), repo, out, "a/b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "a_b", ClassTableName), res.ClassTable)
}

func TestInvoker_SimilarNamesKeepSeparateOutputs(t *testing.T) {
	repo, jar, out := fixture(t)
	runner := new(contract.MockProcessRunner)
	runner.On("RunProcess", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(writesTables(map[string]string{ClassTableName: classCSV})).
		Return(schema.ProcessInvocationResult{State: schema.InvocationCompleted})

	inv := newInvoker(runner, jar)
	first, err := inv.Invoke(context.Background(), repo, out, "a/b_c")
	require.NoError(t, err)
	second, err := inv.Invoke(context.Background(), repo, out, "a_b/c")
	require.NoError(t, err)

	assert.NotEqual(t, filepath.Dir(first.ClassTable), filepath.Dir(second.ClassTable))
	assert.FileExists(t, first.ClassTable, "the second repository must not replace the first one's tables")
	assert.FileExists(t, second.ClassTable)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short"))
	long := strings.Repeat("x", outputTailBytes) + "END"
	got := tail(long)
	assert.True(t, strings.HasSuffix(got, "END"))
	assert.Len(t, got, outputTailBytes+3)
}
