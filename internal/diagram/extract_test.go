package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_SingleBlock(t *testing.T) {
	text := "Here is the lineage.\n\n```mermaid\n  graph TD\n    A-->B  \n```\n\nThat's all."

	got, err := ExtractMermaid(text)
	require.NoError(t, err)
	assert.Equal(t, Block("graph TD\n    A-->B"), got)
}

func TestExtract_FirstBlockWins(t *testing.T) {
	text := "```mermaid\nA-->B\n```\nand\n```mermaid\nC-->D\n```"

	got, err := ExtractMermaid(text)
	require.NoError(t, err)
	assert.Equal(t, Block("A-->B"), got)
}

func TestExtract_SkipsOtherKinds(t *testing.T) {
	text := "```java\nclass X {}\n```\n```Mermaid title\nA-->B\n```"

	got, err := ExtractMermaid(text)
	require.NoError(t, err)
	assert.Equal(t, Block("A-->B"), got)
}

func TestExtract_ContentOnFenceLine(t *testing.T) {
	got, err := ExtractMermaid("```mermaid graph TD; A-->B\n```")
	require.NoError(t, err)
	assert.Equal(t, Block("graph TD; A-->B"), got)

	got, err = ExtractMermaid("```mermaid graph LR\n  A-->B\n```")
	require.NoError(t, err)
	assert.Equal(t, Block("graph LR\n  A-->B"), got)

	repaired, err := Repair(got)
	require.NoError(t, err)
	assert.Equal(t, Repaired("graph LR\n    A-->B"), repaired)
}

func TestExtract_InfoStringDropped(t *testing.T) {
	for _, fence := range []string{"```mermaid title", "```mermaid {.diagram}", "```mermaid theme=dark title=\"Sales flow\""} {
		got, err := ExtractMermaid(fence + "\nA-->B\n```")
		require.NoError(t, err, fence)
		assert.Equal(t, Block("A-->B"), got, fence)
	}
}

func TestExtract_TagMustMatchExactly(t *testing.T) {
	_, err := ExtractMermaid("```mermaidx\nA-->B\n```")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtract_EmptyBlockIsFound(t *testing.T) {
	got, err := ExtractMermaid("```mermaid\n```")
	require.NoError(t, err)
	assert.Equal(t, Block(""), got)

	_, err = Repair(got)
	assert.ErrorIs(t, err, ErrUnrepairable)
}

func TestExtract_Policies(t *testing.T) {
	text := "  no fences in here\n"

	tests := []struct {
		name    string
		policy  Policy
		want    Block
		wantErr error
	}{
		{"report absence", ReportAbsence, "", ErrNotFound},
		{"whole input", WholeInput, "no fences in here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(text, KindMermaid, tt.policy)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCode(t *testing.T) {
	assert.Equal(t, "class FooTest {}", ExtractCode("Sure:\n```java\nclass FooTest {}\n```", KindJava))
	assert.Equal(t, "class FooTest {}", ExtractCode("\nclass FooTest {}\n", KindJava))
}

func TestExtract_CRLF(t *testing.T) {
	got, err := ExtractMermaid("```mermaid\r\nA-->B\r\n```")
	require.NoError(t, err)
	assert.Equal(t, Block("A-->B"), got)
}
