package txn

// NumericFields are payload fields the scoring API expects as numbers.
// Values that do not parse as a finite number are dropped, not defaulted.
var NumericFields = []string{
	"transaction_seq",
	"user_seq",
	"deposit_amount",
	"transaction_count_24hour",
	"transaction_amount_24hour",
	"transaction_count_1week",
	"transaction_amount_1week",
	"transaction_count_1month",
	"transaction_amount_1month",
}

// DateFields are sent as YYYY-MM-DD strings.
var DateFields = []string{
	"register_date",
	"first_transaction_date",
	"birth_date",
	"recheck_date",
	"face_pin_date",
}

// DateTimeFields are sent as "YYYY-MM-DD HH:MM:SS" strings.
var DateTimeFields = []string{"create_dt"}

// CSVColumns is the expected header row for upload scoring, order-insensitive.
var CSVColumns = []string{
	"transaction_seq",
	"user_seq",
	"create_dt",
	"deposit_amount",
	"receiving_country",
	"country_code",
	"id_type",
	"stay_qualify",
	"visa_expire_date",
	"user_name",
	"sender_name",
	"recipient_name",
	"payment_method",
	"autodebit_account",
	"register_date",
	"first_transaction_date",
	"birth_date",
	"recheck_date",
	"invite_code",
	"face_pin_date",
	"transaction_count_24hour",
	"transaction_amount_24hour",
	"transaction_count_1week",
	"transaction_amount_1week",
	"transaction_count_1month",
	"transaction_amount_1month",
}

var (
	numericFieldSet  = toSet(NumericFields)
	dateFieldSet     = toSet(DateFields)
	dateTimeFieldSet = toSet(DateTimeFields)
)

func toSet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// MissingCSVColumns returns the expected columns absent from a CSV header row.
// Comparison ignores column order and surrounding whitespace.
func MissingCSVColumns(header []string) []string {
	seen := make(map[string]struct{}, len(header))
	for _, col := range header {
		seen[trimBOM(col)] = struct{}{}
	}
	missing := make([]string, 0)
	for _, col := range CSVColumns {
		if _, ok := seen[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
