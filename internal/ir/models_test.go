package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElementID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "App/Foo", ElementID("App", "Foo"))
	assert.Equal(t, "App/Foo/bar", ElementID("App", "Foo", "bar"))
	assert.Equal(t, "App/Foo", ElementID(" App ", "", " Foo "), "blank segments dropped, names trimmed")
}

func TestQualifyClassRef(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "App/Base", QualifyClassRef("Base", "App"))
	assert.Equal(t, "Other/Base", QualifyClassRef("Other/Base", "App"), "qualified references pass through")
	assert.Empty(t, QualifyClassRef("  ", "App"))
}

func TestParseAccessModifier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, AccessProtected, ParseAccessModifier("Protected"))
	assert.Equal(t, AccessPrivate, ParseAccessModifier("private"))
	assert.Equal(t, AccessInternal, ParseAccessModifier(" internal "))
	assert.Equal(t, AccessPublic, ParseAccessModifier(""))
	assert.Equal(t, AccessPublic, ParseAccessModifier("whatever"))
}

func TestFieldAccess_TargetFieldID(t *testing.T) {
	t.Parallel()

	fa := FieldAccess{TableName: "CustTable", FieldName: "CreditMax", Model: "App", Kind: AccessWrite}
	assert.Equal(t, "App/CustTable/CreditMax", fa.TargetFieldID())
}
