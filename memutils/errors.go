package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// OutOfRangeError is the error returned from CheckRange if a value falls outside of its permitted bounds
var OutOfRangeError error = errors.New("value is out of range")
