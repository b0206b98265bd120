package derive

import "testing"

func evalStr(t *testing.T, src string, row Row) any {
	t.Helper()
	expr, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	v, err := expr.Eval(row)
	if err != nil {
		t.Fatalf("eval %q: %v", src, err)
	}
	return v
}

func TestArithmetic(t *testing.T) {
	v := evalStr(t, "price * quantity", Row{"price": 2.5, "quantity": 4.0})
	if v != 10.0 {
		t.Fatalf("got %v, want 10", v)
	}
}

func TestConcatAndUpper(t *testing.T) {
	v := evalStr(t, "UPPER(CONCAT(first_name, ' ', last_name))", Row{
		"first_name": "ada", "last_name": "lovelace",
	})
	if v != "ADA LOVELACE" {
		t.Fatalf("got %v", v)
	}
}

func TestCoalesce(t *testing.T) {
	v := evalStr(t, "COALESCE(middle_name, 'n/a')", Row{"middle_name": nil})
	if v != "n/a" {
		t.Fatalf("got %v", v)
	}
}

func TestIfThenElse(t *testing.T) {
	v := evalStr(t, "IF(amount > 100, 'large', 'small')", Row{"amount": 150.0})
	if v != "large" {
		t.Fatalf("got %v", v)
	}
}

func TestCastInteger(t *testing.T) {
	v := evalStr(t, "CAST(raw_count AS integer)", Row{"raw_count": "42"})
	if v != int64(42) {
		t.Fatalf("got %v", v)
	}
}

func TestTrimSubstring(t *testing.T) {
	v := evalStr(t, "SUBSTRING(TRIM(code), 1, 3)", Row{"code": "  ABCDEF  "})
	if v != "ABC" {
		t.Fatalf("got %v", v)
	}
}

func TestUnknownColumnErrors(t *testing.T) {
	expr, err := Parse("missing_column")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := expr.Eval(Row{}); err == nil {
		t.Fatalf("expected error for unknown column reference")
	}
}
