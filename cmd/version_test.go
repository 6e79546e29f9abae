package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"example.com/backstage/services/jamfops/internal/functions"
)

func TestWriteVersion(t *testing.T) {
	var out bytes.Buffer
	writeVersion(&out)

	assert.Contains(t, out.String(), "jamfops "+Version+" (Jamf Pro device lifecycle automation)")
	assert.Contains(t, out.String(), "commit     unknown")
	for _, name := range functions.Names {
		assert.Contains(t, out.String(), name)
	}
}
