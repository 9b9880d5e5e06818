package cardnum

// Valid reports whether number is a structurally valid card number: all
// digits, 13 to 19 of them, passing the Luhn mod-10 checksum. It must be
// applied to raw numbers only, never to masked or encrypted forms.
func Valid(number string) bool {
	if len(number) < 13 || len(number) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		ch := number[i]
		if ch < '0' || ch > '9' {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}
