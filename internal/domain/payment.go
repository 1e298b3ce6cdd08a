package domain

type PaymentMethod string

const (
	PaymentMethodMomo  PaymentMethod = "momo"
	PaymentMethodVNPay PaymentMethod = "vnpay"
	PaymentMethodVisa  PaymentMethod = "visa"
	PaymentMethodCOD   PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMomo, PaymentMethodVNPay, PaymentMethodVisa, PaymentMethodCOD:
		return true
	}

	return false
}

// DefaultPaymentStatus is used when the caller does not report a payment outcome.
// Cash on delivery is settled at the counter, every other method is paid up front.
func (m PaymentMethod) DefaultPaymentStatus() PaymentStatus {
	if m == PaymentMethodCOD {
		return PaymentStatusPending
	}

	return PaymentStatusPaid
}

// ExpiresUnpaid reports whether a pending booking paid this way is given up when the
// payment does not arrive in time. Cash on delivery is collected at the counter, so its
// seats stay sold until an admin cancels the booking.
func (m PaymentMethod) ExpiresUnpaid() bool {
	return m != PaymentMethodCOD
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusPaid:    {PaymentStatusCancelled},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}
