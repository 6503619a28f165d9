/*
Package isoskin implements implicit skinning: a skinned character mesh is
first deformed with linear blend weights and then relaxed onto an implicit
surface built from per-bone scalar fields, removing the volume loss and
"candy-wrapper" collapse linear blending produces at joints.

The library is split by concern:

	mesh     passive mesh model, topology helpers and welding.
	hrbf     Hermite radial basis function fit of one bone's skin segment.
	compose  composition tree blending per-bone fields into one surface.
	render   marching cubes polygonizer and volume/STL input and output.
	deform   the per-frame deformer: skin, project, relax, smooth.

Fields follow the signed distance convention throughout: negative inside the
skin, positive outside, zero on the bind pose surface.
*/
package isoskin
