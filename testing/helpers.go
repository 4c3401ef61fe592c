// Package testing provides fixtures and helpers for shroud tests.
package testing

import (
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/zoobzio/shroud"
)

// Password is the master password used by fixture vaults.
const Password = "correct horse battery staple"

// Fixture sizes.
const (
	Customers          = 20
	Purchases          = 51
	MatchedPurchases   = 41
	UnmatchedPurchases = Purchases - MatchedPurchases
)

var firstNames = []string{
	"John", "Mary", "Wing", "Ka", "Siu", "Peter", "Grace", "Chi", "Ming", "Alice",
	"David", "Joyce", "Kelvin", "Emily", "Tony", "Winnie", "Eric", "Fiona", "Jason", "Carmen",
}

var lastNames = []string{
	"Doe", "Chan", "Wong", "Lee", "Cheung", "Lau", "Ho", "Ng", "Leung", "Tam",
	"Yip", "Lam", "Tang", "Kwok", "Chow", "Fung", "Mak", "Yeung", "Tse", "Law",
}

var products = []string{"Laptop", "Monitor", "Keyboard", "Headset", "Tablet"}

// AccountID returns the fixture account id for customer n (1-based).
func AccountID(n int) string {
	return fmt.Sprintf("ACC%03d", n)
}

// HKID returns a Hong Kong identity number with a correct check digit.
// prefix is one or two upper-case letters, digits six digits.
func HKID(prefix, digits string) string {
	sum := 0
	if len(prefix) == 1 {
		sum += 36 * 9
		sum += int(prefix[0]-'A'+10) * 8
	} else {
		sum += int(prefix[0]-'A'+10) * 9
		sum += int(prefix[1]-'A'+10) * 8
	}
	for i := 0; i < 6; i++ {
		sum += int(digits[i]-'0') * (7 - i)
	}
	check := "0123456789A"[(11-sum%11)%11]
	return fmt.Sprintf("%s%s(%c)", prefix, digits, check)
}

// CustomerTable returns 20 raw customer profiles. Customer 1 is
// {ACC001, John Doe, john.doe@example.com}.
func CustomerTable() *shroud.Table {
	t := shroud.NewTable("customers",
		shroud.Column{Name: "account_id", Kind: shroud.KindString},
		shroud.Column{Name: "name", Kind: shroud.KindString},
		shroud.Column{Name: "email", Kind: shroud.KindString},
		shroud.Column{Name: "phone", Kind: shroud.KindString},
		shroud.Column{Name: "hkid", Kind: shroud.KindString},
		shroud.Column{Name: "segment", Kind: shroud.KindString},
	)
	segments := []string{"Premium", "Standard", "Basic"}
	for i := 0; i < Customers; i++ {
		first, last := firstNames[i], lastNames[i]
		prefix := string(rune('A' + i%26))
		if i%4 == 3 {
			prefix = "A" + string(rune('B'+i%20))
		}
		_ = t.Append(
			shroud.Str(AccountID(i+1)),
			shroud.Str(first+" "+last),
			shroud.Str(fmt.Sprintf("%s.%s@example.com", strings.ToLower(first), strings.ToLower(last))),
			shroud.Str(fmt.Sprintf("+852 9123 %04d", 4500+i)),
			shroud.Str(HKID(prefix, fmt.Sprintf("%06d", 123456+i*1111))),
			shroud.Str(segments[i%len(segments)]),
		)
	}
	return t
}

// PurchaseTable returns 51 purchases. The first 41 belong to the fixture
// customers, at least two each; the last 10 reference unknown accounts.
func PurchaseTable() *shroud.Table {
	t := shroud.NewTable("purchases",
		shroud.Column{Name: "purchase_id", Kind: shroud.KindString},
		shroud.Column{Name: "account_id", Kind: shroud.KindString},
		shroud.Column{Name: "product", Kind: shroud.KindString},
		shroud.Column{Name: "amount", Kind: shroud.KindFloat},
		shroud.Column{Name: "purchased_at", Kind: shroud.KindTime},
	)
	for i := 0; i < Purchases; i++ {
		account := AccountID(i%Customers + 1)
		if i >= MatchedPurchases {
			account = AccountID(101 + i - MatchedPurchases)
		}
		_ = t.Append(
			shroud.Str(fmt.Sprintf("P%04d", i+1)),
			shroud.Str(account),
			shroud.Str(products[i%len(products)]),
			shroud.Str(fmt.Sprintf("%d.99", 50+i*7)),
			shroud.Str(fmt.Sprintf("2024-%02d-%02d", i%12+1, i%28+1)),
		)
	}
	return t
}

// Customer is the typed form of a customer profile.
type Customer struct {
	AccountID string  `column:"account_id" pii:"identifier"`
	Name      string  `pii:"person_name"`
	Email     string  `pii:"email"`
	Phone     *string `pii:"phone"`
	Segment   string
	Notes     string `column:"-"`
}

// CustomerRecords returns the first n fixture customers as structs.
func CustomerRecords(n int) []Customer {
	t := CustomerTable()
	out := make([]Customer, 0, n)
	for i := 0; i < n && i < t.Len(); i++ {
		row := t.Rows[i]
		phone := row[3].Value
		out = append(out, Customer{
			AccountID: row[0].Value,
			Name:      row[1].Value,
			Email:     row[2].Value,
			Phone:     &phone,
			Segment:   row[5].Value,
			Notes:     "internal",
		})
	}
	return out
}

// MemVault returns a vault on an in-memory filesystem.
func MemVault(tb testing.TB, opts ...shroud.VaultOption) (*shroud.Vault, afero.Fs) {
	tb.Helper()
	fs := afero.NewMemMapFs()
	v, err := shroud.NewVault("/vault", append([]shroud.VaultOption{shroud.WithFs(fs)}, opts...)...)
	if err != nil {
		tb.Fatalf("NewVault() error: %v", err)
	}
	return v, fs
}

// Session returns a session closed at test cleanup.
func Session(tb testing.TB, joinKeys ...string) *shroud.Session {
	tb.Helper()
	s, err := shroud.NewSession()
	if err != nil {
		tb.Fatalf("NewSession() error: %v", err)
	}
	s.MarkJoinKey(joinKeys...)
	tb.Cleanup(s.Close)
	return s
}
