package workflow

import "fmt"

// Operation изменение данных заявки, которое разрешено не на каждом этапе
type Operation string

const (
	EditBid         Operation = "edit_bid"
	RecordResponses Operation = "record_responses"
	Allocate        Operation = "allocate"
	RecordClosure   Operation = "record_closure"
	RecordInvoice   Operation = "record_invoice"
)

// В терминальных статусах данные заявки заморожены,
// кроме реквизитов счёта: их дописывают и после invoiced.
var afterClose = map[Status][]Operation{
	Invoiced: {RecordInvoice},
}

// Allows разрешена ли операция в статусе
func (s Status) Allows(op Operation) bool {
	if !s.Valid() {
		return false
	}
	if !s.Terminal() {
		return true
	}
	for _, allowed := range afterClose[s] {
		if allowed == op {
			return true
		}
	}
	return false
}

// Guard проверяет операцию против текущего (сохранённого) статуса заявки
func Guard(current string, op Operation) error {
	st, err := Normalize(current)
	if err != nil {
		return err
	}
	if !st.Allows(op) {
		return fmt.Errorf("%w: %s is not allowed for %s bid", ErrInvalidTransition, op, st)
	}
	return nil
}
