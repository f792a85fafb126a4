package term

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedTerminal(input string) (*Terminal, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Terminal{
		phone: "+79991234567",
		in:    bufio.NewReader(strings.NewReader(input)),
		out:   out,
	}, out
}

func TestTerminal_Phone(t *testing.T) {
	trm, _ := newBufferedTerminal("")
	phone, err := trm.Phone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "+79991234567", phone)
}

func TestTerminal_Code(t *testing.T) {
	trm, out := newBufferedTerminal("  12345 \n")
	code, err := trm.Code(context.Background(), &tg.AuthSentCode{})
	require.NoError(t, err)
	assert.Equal(t, "12345", code)
	assert.Contains(t, out.String(), "Enter code:")
}

func TestTerminal_Code_ReadError(t *testing.T) {
	// Ввод без завершающего перевода строки приводит к EOF.
	trm, _ := newBufferedTerminal("12345")
	_, err := trm.Code(context.Background(), &tg.AuthSentCode{})
	require.Error(t, err)
}

func TestTerminal_AcceptTermsOfService(t *testing.T) {
	trm, out := newBufferedTerminal("")
	err := trm.AcceptTermsOfService(context.Background(), tg.HelpTermsOfService{Text: "rules"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "rules")
}

func TestTerminal_SignUp(t *testing.T) {
	trm, _ := newBufferedTerminal("")
	_, err := trm.SignUp(context.Background())
	require.Error(t, err)
}
