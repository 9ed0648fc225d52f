// Package authcore is the OTP authentication core. Flows live in app,
// Redis/DynamoDB/audit/SMS implementations in adapter and the HTTP surface
// in port. The tests in this package run the flows end to end against an
// in-memory Redis.
package authcore
