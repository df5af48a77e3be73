package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RIB check-key computation: mod-97 checksum over bank (5) + branch (5) +
// account (11), letters transliterated to digits per the standard RIB table.

var ErrInvalidRIB = errors.New("invalid rib component")

// ribLetterDigits maps A..Z to their RIB digit. A,J -> 1; B,K,S -> 2; ... ;
// I,R,Z -> 9.
var ribLetterDigits = map[rune]rune{
	'A': '1', 'J': '1',
	'B': '2', 'K': '2', 'S': '2',
	'C': '3', 'L': '3', 'T': '3',
	'D': '4', 'M': '4', 'U': '4',
	'E': '5', 'N': '5', 'V': '5',
	'F': '6', 'O': '6', 'W': '6',
	'G': '7', 'P': '7', 'X': '7',
	'H': '8', 'Q': '8', 'Y': '8',
	'I': '9', 'R': '9', 'Z': '9',
}

func ribDigits(component string, width int) (string, error) {
	clean := strings.ToUpper(strings.TrimSpace(component))
	if clean == "" || len(clean) > width {
		return "", fmt.Errorf("%w: %q does not fit %d positions", ErrInvalidRIB, component, width)
	}
	var b strings.Builder
	for _, r := range clean {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			d, ok := ribLetterDigits[r]
			if !ok {
				return "", fmt.Errorf("%w: character %q in %q", ErrInvalidRIB, r, component)
			}
			b.WriteRune(d)
		}
	}
	return strings.Repeat("0", width-b.Len()) + b.String(), nil
}

// ComputeRIBKey returns the two-digit check key for a bank/branch/account
// triple. The key is 97 minus the concatenated digit stream (with "00"
// appended) taken mod 97.
func ComputeRIBKey(bankCode, branchCode, accountNumber string) (string, error) {
	bank, err := ribDigits(bankCode, 5)
	if err != nil {
		return "", err
	}
	branch, err := ribDigits(branchCode, 5)
	if err != nil {
		return "", err
	}
	account, err := ribDigits(accountNumber, 11)
	if err != nil {
		return "", err
	}

	var rem int
	for _, r := range bank + branch + account + "00" {
		rem = (rem*10 + int(r-'0')) % 97
	}
	return fmt.Sprintf("%02d", 97-rem), nil
}

// VerifyRIBKey reports whether the stored key matches the computed one.
func VerifyRIBKey(bankCode, branchCode, accountNumber, key string) bool {
	computed, err := ComputeRIBKey(bankCode, branchCode, accountNumber)
	if err != nil {
		return false
	}
	return computed == strings.TrimSpace(key)
}
