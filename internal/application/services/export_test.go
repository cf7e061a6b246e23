package services

func SetRequestIDGenerator(d *RequestDispatcher, gen func() string) {
	d.newRequestID = gen
}
