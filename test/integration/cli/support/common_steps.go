package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/posest/cmd/posest/cmd"
	"github.com/MeKo-Tech/posest/internal/posefile"
)

const commandTimeout = 30 * time.Second

// iRunCommand runs a posest command line in-process against a fresh command
// tree. A leading "posest" is optional.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "posest" {
		args = args[1:]
	}
	if len(args) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	root := cmd.NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()
	testCtx.LastError = root.ExecuteContext(ctx)
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)
	testCtx.LastStdout = stdout.String()
	testCtx.LastOutput = stdout.String() + stderr.String()
	testCtx.LastExitCode = 0
	if testCtx.LastError != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode == 0 {
		return nil
	}
	return fmt.Errorf("%q exited %d: %w\n%s", testCtx.LastCommand, testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode != 0 {
		return nil
	}
	return fmt.Errorf("%q succeeded unexpectedly\n%s", testCtx.LastCommand, testCtx.LastOutput)
}

// expectContains compares presence of needle in a named body of text.
func (testCtx *TestContext) expectContains(what, body, needle string, want bool) error {
	needle = testCtx.substituteCommandVariables(needle)
	if strings.Contains(body, needle) == want {
		return nil
	}
	verb := "lacks"
	if !want {
		verb = "unexpectedly contains"
	}
	return fmt.Errorf("%s %s %q\n--- %s ---\n%s", what, verb, needle, what, body)
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	return testCtx.expectContains("output", testCtx.LastOutput, text, true)
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	return testCtx.expectContains("output", testCtx.LastOutput, text, false)
}

// theStdoutShouldBe compares standard output exactly, ignoring trailing newlines.
func (testCtx *TestContext) theStdoutShouldBe(doc *godog.DocString) error {
	want := strings.TrimRight(doc.Content, "\n")
	got := strings.TrimRight(testCtx.LastStdout, "\n")
	if got == want {
		return nil
	}
	return fmt.Errorf("stdout mismatch\n--- want ---\n%s\n--- got ---\n%s", want, got)
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastStdout)) {
		return fmt.Errorf("stdout is not JSON:\n%s", testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeCSVWithColumn(column string) error {
	header, err := csv.NewReader(strings.NewReader(testCtx.LastStdout)).Read()
	if err != nil {
		return fmt.Errorf("stdout is not CSV: %w", err)
	}
	if !slices.Contains(header, column) {
		return fmt.Errorf("CSV header %v lacks column %q", header, column)
	}
	return nil
}

// theOutputShouldContainPoseRecords decodes stdout as a poses file.
func (testCtx *TestContext) theOutputShouldContainPoseRecords(n int) error {
	records, skipped, err := posefile.Decode(strings.NewReader(testCtx.LastStdout))
	switch {
	case err != nil:
		return err
	case len(skipped) > 0:
		return fmt.Errorf("malformed pose records in stdout: %v", skipped)
	case len(records) != n:
		return fmt.Errorf("got %d pose records, want %d\n%s", len(records), n, testCtx.LastStdout)
	}
	return nil
}

// theErrorShouldMention matches case-insensitively against both the
// returned error and everything the command printed.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("no error occurred, expected one mentioning %q", text)
	}
	body := testCtx.LastError.Error() + "\n" + testCtx.LastOutput
	if !strings.Contains(strings.ToLower(body), strings.ToLower(text)) {
		return fmt.Errorf("error does not mention %q\n%s", text, body)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	_, err := testCtx.readFile(name)
	return err
}

func (testCtx *TestContext) theFileShouldContain(name, text string) error {
	content, err := testCtx.readFile(name)
	if err != nil {
		return err
	}
	return testCtx.expectContains("file "+name, content, text, true)
}

func (testCtx *TestContext) theFileShouldNotContain(name, text string) error {
	content, err := testCtx.readFile(name)
	if err != nil {
		return err
	}
	return testCtx.expectContains("file "+name, content, text, false)
}

// theFileShouldHaveLines counts non-blank lines.
func (testCtx *TestContext) theFileShouldHaveLines(name string, n int) error {
	content, err := testCtx.readFile(name)
	if err != nil {
		return err
	}
	got := 0
	for line := range strings.Lines(content) {
		if strings.TrimSpace(line) != "" {
			got++
		}
	}
	if got != n {
		return fmt.Errorf("file %s has %d lines, want %d", name, got, n)
	}
	return nil
}

func (testCtx *TestContext) readFile(name string) (string, error) {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return "", fmt.Errorf("file %s: %w", name, err)
	}
	return string(data), nil
}

// RegisterCommonSteps binds command, output, error and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	steps := []struct {
		expr string
		fn   any
	}{
		{`^I run "([^"]*)"$`, testCtx.iRunCommand},
		{`^the command should succeed$`, testCtx.theCommandShouldSucceed},
		{`^the command should fail$`, testCtx.theCommandShouldFail},

		{`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain},
		{`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain},
		{`^the standard output should be:$`, testCtx.theStdoutShouldBe},
		{`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON},
		{`^the output should be CSV with column "([^"]*)"$`, testCtx.theOutputShouldBeCSVWithColumn},
		{`^the output should contain (\d+) pose records?$`, testCtx.theOutputShouldContainPoseRecords},

		{`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention},

		{`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist},
		{`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain},
		{`^the file "([^"]*)" should not contain "([^"]*)"$`, testCtx.theFileShouldNotContain},
		{`^the file "([^"]*)" should have (\d+) lines$`, testCtx.theFileShouldHaveLines},
	}
	for _, s := range steps {
		sc.Step(s.expr, s.fn)
	}
}
